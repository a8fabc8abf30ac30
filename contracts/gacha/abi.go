package gacha

// GachaABI is the ABI of the deployed gacha contract.
const GachaABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true,  "name": "user",    "type": "address"},
			{"indexed": true,  "name": "tokenId", "type": "uint256"},
			{"indexed": false, "name": "rarity",  "type": "uint256"}
		],
		"name": "GachaPulled",
		"type": "event"
	},
	{
		"inputs": [],
		"name": "pullGacha",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "ownerOf",
		"outputs": [{"name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "name",
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "symbol",
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const (
	// PulledEvent is emitted once per completed pull.
	PulledEvent = "GachaPulled"

	// PullMethod requests a random card for the sender.
	PullMethod = "pullGacha"
)
