package pull

import (
	"fmt"

	"github.com/pkg/errors"
)

// Rarity is a card category. Values are ordered from most common to rarest.
type Rarity uint8

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityBronze
	RaritySilver
	RarityGold
	RarityPlatinum
	RarityRare
	RarityEpic
	RarityLegendary
	RarityMythic
)

var rarityLabels = [...]string{
	"Common",
	"Uncommon",
	"Bronze",
	"Silver",
	"Gold",
	"Platinum",
	"Rare",
	"Epic",
	"Legendary",
	"Mythic",
}

// RarityCount is the number of categories in the rarity table.
const RarityCount = len(rarityLabels)

// RarityFromIndex maps a category index reported by the ledger to a rarity.
func RarityFromIndex(index uint64) (Rarity, error) {
	if index >= uint64(RarityCount) {
		return 0, errors.Wrapf(ErrUnknownCategory, "index %d", index)
	}
	return Rarity(index), nil
}

// RarityFromLabel is the inverse of Rarity.String.
func RarityFromLabel(label string) (Rarity, error) {
	for i, l := range rarityLabels {
		if l == label {
			return Rarity(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownCategory, "label %q", label)
}

func (r Rarity) String() string {
	if int(r) >= RarityCount {
		return fmt.Sprintf("Rarity(%d)", uint8(r))
	}
	return rarityLabels[r]
}

func (r Rarity) MarshalText() ([]byte, error) {
	if int(r) >= RarityCount {
		return nil, errors.Wrapf(ErrUnknownCategory, "index %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Rarity) UnmarshalText(text []byte) error {
	v, err := RarityFromLabel(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
