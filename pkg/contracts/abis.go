package contracts

// Hand-rolled ABI fragments for the contracts the gateway binds. Only the
// events and functions the gateway touches are declared.

// NectarTokenABI covers the ERC20 surface the relay endpoints use.
const NectarTokenABI = `[
	{"type":"event","name":"Transfer","inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[
		{"name":"to","type":"address"},
		{"name":"value","type":"uint256"}],
		"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[
		{"name":"owner","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]}
]`

// BountyRegistryABI covers the bounty lifecycle events.
const BountyRegistryABI = `[
	{"type":"event","name":"FeesUpdated","inputs":[
		{"name":"bountyFee","type":"uint256","indexed":false},
		{"name":"assertionFee","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"event","name":"WindowsUpdated","inputs":[
		{"name":"assertionRevealWindow","type":"uint256","indexed":false},
		{"name":"arbiterVoteWindow","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"event","name":"NewBounty","inputs":[
		{"name":"guid","type":"uint128","indexed":false},
		{"name":"artifactType","type":"uint256","indexed":false},
		{"name":"author","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"artifactURI","type":"string","indexed":false},
		{"name":"expirationBlock","type":"uint256","indexed":false},
		{"name":"metadata","type":"string","indexed":false}],"anonymous":false},
	{"type":"event","name":"NewAssertion","inputs":[
		{"name":"bountyGuid","type":"uint128","indexed":false},
		{"name":"author","type":"address","indexed":false},
		{"name":"index","type":"uint256","indexed":false},
		{"name":"bid","type":"uint256[]","indexed":false},
		{"name":"mask","type":"uint256","indexed":false},
		{"name":"numArtifacts","type":"uint256","indexed":false},
		{"name":"commitment","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"event","name":"RevealedAssertion","inputs":[
		{"name":"bountyGuid","type":"uint128","indexed":false},
		{"name":"author","type":"address","indexed":false},
		{"name":"index","type":"uint256","indexed":false},
		{"name":"nonce","type":"uint256","indexed":false},
		{"name":"verdicts","type":"uint256","indexed":false},
		{"name":"numArtifacts","type":"uint256","indexed":false},
		{"name":"metadata","type":"string","indexed":false}],"anonymous":false},
	{"type":"event","name":"NewVote","inputs":[
		{"name":"bountyGuid","type":"uint128","indexed":false},
		{"name":"votes","type":"uint256","indexed":false},
		{"name":"numArtifacts","type":"uint256","indexed":false},
		{"name":"voter","type":"address","indexed":false}],"anonymous":false},
	{"type":"event","name":"QuorumReached","inputs":[
		{"name":"bountyGuid","type":"uint128","indexed":false}],"anonymous":false},
	{"type":"event","name":"SettledBounty","inputs":[
		{"name":"bountyGuid","type":"uint128","indexed":false},
		{"name":"settler","type":"address","indexed":false},
		{"name":"payout","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"event","name":"Deprecated","inputs":[
		{"name":"rollover","type":"bool","indexed":false}],"anonymous":false},
	{"type":"event","name":"Undeprecated","inputs":[],"anonymous":false},
	{"type":"function","name":"VERSION","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"bountyFee","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"assertionFee","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"uint256"}]}
]`

// ArbiterStakingABI covers staking deposits and withdrawals.
const ArbiterStakingABI = `[
	{"type":"event","name":"NewDeposit","inputs":[
		{"name":"from","type":"address","indexed":false},
		{"name":"value","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"event","name":"NewWithdrawal","inputs":[
		{"name":"to","type":"address","indexed":false},
		{"name":"value","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"function","name":"VERSION","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"string"}]}
]`

// ERC20RelayABI covers the token bridge between home and side.
const ERC20RelayABI = `[
	{"type":"function","name":"fees","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"VERSION","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"string"}]}
]`

// OfferRegistryABI covers offer channel creation, home chain only.
const OfferRegistryABI = `[
	{"type":"event","name":"InitializedChannel","inputs":[
		{"name":"msig","type":"address","indexed":false},
		{"name":"ambassador","type":"address","indexed":false},
		{"name":"expert","type":"address","indexed":false},
		{"name":"guid","type":"uint128","indexed":false}],"anonymous":false},
	{"type":"function","name":"guidToChannel","stateMutability":"view","inputs":[
		{"name":"guid","type":"uint256"}],
		"outputs":[
			{"name":"msig","type":"address"},
			{"name":"ambassador","type":"address"},
			{"name":"expert","type":"address"}]},
	{"type":"function","name":"VERSION","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"string"}]}
]`

// OfferMultiSigABI is the per-channel multisig template; instances are bound
// by address when a scoped event stream is requested.
const OfferMultiSigABI = `[
	{"type":"event","name":"OpenedAgreement","inputs":[
		{"name":"_ambassador","type":"address","indexed":false}],"anonymous":false},
	{"type":"event","name":"CanceledAgreement","inputs":[
		{"name":"_ambassador","type":"address","indexed":false}],"anonymous":false},
	{"type":"event","name":"JoinedAgreement","inputs":[
		{"name":"_expert","type":"address","indexed":false}],"anonymous":false},
	{"type":"event","name":"ClosedAgreement","inputs":[
		{"name":"_ambassador","type":"address","indexed":false},
		{"name":"_expert","type":"address","indexed":false}],"anonymous":false},
	{"type":"event","name":"StartedSettle","inputs":[
		{"name":"initiator","type":"address","indexed":false},
		{"name":"sequence","type":"uint256","indexed":false},
		{"name":"settlementPeriodEnd","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"event","name":"SettleStateChallenged","inputs":[
		{"name":"challenger","type":"address","indexed":false},
		{"name":"sequence","type":"uint256","indexed":false},
		{"name":"settlementPeriodEnd","type":"uint256","indexed":false}],"anonymous":false}
]`
