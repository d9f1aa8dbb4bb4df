package ledger

// contractABI is the subset of the marketplace contract the service consumes.
const contractABI = `[
	{"type":"function","name":"placeBid","stateMutability":"nonpayable","inputs":[
		{"name":"idHash","type":"bytes32"},
		{"name":"propertyId","type":"uint256"},
		{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"cancelBid","stateMutability":"nonpayable","inputs":[
		{"name":"idHash","type":"bytes32"},
		{"name":"propertyId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"finalizeBids","stateMutability":"nonpayable","inputs":[
		{"name":"propertyId","type":"uint256"},
		{"name":"owner","type":"address"}],"outputs":[]},
	{"type":"function","name":"isFinalized","stateMutability":"view","inputs":[
		{"name":"propertyId","type":"uint256"}],"outputs":[
		{"name":"","type":"bool"}]},
	{"type":"event","name":"BidPlaced","anonymous":false,"inputs":[
		{"name":"propertyId","type":"uint256","indexed":true},
		{"name":"bidder","type":"address","indexed":true},
		{"name":"idHash","type":"bytes32","indexed":false},
		{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"BidCancelled","anonymous":false,"inputs":[
		{"name":"propertyId","type":"uint256","indexed":true},
		{"name":"bidder","type":"address","indexed":true},
		{"name":"idHash","type":"bytes32","indexed":false}]},
	{"type":"event","name":"BidsFinalized","anonymous":false,"inputs":[
		{"name":"propertyId","type":"uint256","indexed":true},
		{"name":"owner","type":"address","indexed":true},
		{"name":"winner","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false}]}
]`

// Event names.
const (
	EventBidPlaced     = "BidPlaced"
	EventBidCancelled  = "BidCancelled"
	EventBidsFinalized = "BidsFinalized"
)
