package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/tokenized/gacha/internal/pull"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

func validFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	}
	return errors.Errorf("Unsupported format %q", format)
}

// renderCards writes records in the requested format.
func renderCards(w io.Writer, records []pull.CardRecord, format string) error {
	if records == nil {
		records = []pull.CardRecord{}
	}

	switch format {
	case FormatJSON:
		return renderJSON(w, records)

	case FormatYAML:
		return renderYAML(w, records)

	case FormatText:
		if len(records) == 0 {
			_, err := fmt.Fprintln(w, "No cards")
			return err
		}

		fmt.Fprintf(w, "%-8s %-10s %-20s %s\n", "TOKEN", "RARITY", "PULLED AT", "TX")
		for _, record := range records {
			fmt.Fprintf(w, "%-8d %-10s %-20s %s\n", record.TokenID, record.Rarity,
				record.PulledAt.UTC().Format(time.RFC3339), record.TxID)
		}
		_, err := fmt.Fprintf(w, "%d cards\n", len(records))
		return err
	}

	return validFormat(format)
}

// renderCard writes a single pulled card.
func renderCard(w io.Writer, record *pull.CardRecord, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, record)

	case FormatYAML:
		return renderYAML(w, record)

	case FormatText:
		fmt.Fprintf(w, "Pulled %s #%d\n", record.Rarity, record.TokenID)
		fmt.Fprintf(w, "  Owner : %s\n", record.User)
		fmt.Fprintf(w, "  Tx    : %s\n", record.TxID)
		if record.BlockNumber > 0 {
			fmt.Fprintf(w, "  Block : %d\n", record.BlockNumber)
		}
		return nil
	}

	return validFormat(format)
}

func renderJSON(w io.Writer, value interface{}) error {
	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal json")
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

func renderYAML(w io.Writer, value interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(value); err != nil {
		return errors.Wrap(err, "marshal yaml")
	}
	return encoder.Close()
}
