package services

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// SentinelModule is the head of the wallet's enabled-module linked
// list. disableModule calldata carries the predecessor of the module
// being removed, so the first module's predecessor is the sentinel.
var SentinelModule = common.HexToAddress("0x0000000000000000000000000000000000000001")

// mustABI parses an ABI definition or panics; definitions are
// compile-time constants so a failure here is a programming error.
func mustABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI: %v", err))
	}
	return parsed
}

const walletABIJSON = `[
	{"type":"function","name":"proposeTransaction","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}],"outputs":[{"name":"txHash","type":"bytes32"}]},
	{"type":"function","name":"approveTransaction","stateMutability":"nonpayable","inputs":[{"name":"txHash","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"revokeApproval","stateMutability":"nonpayable","inputs":[{"name":"txHash","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"cancelTransaction","stateMutability":"nonpayable","inputs":[{"name":"txHash","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"executeTransaction","stateMutability":"nonpayable","inputs":[{"name":"txHash","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"approveAndExecute","stateMutability":"nonpayable","inputs":[{"name":"txHash","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"transactions","stateMutability":"view","inputs":[{"name":"txHash","type":"bytes32"}],"outputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"proposer","type":"address"},{"name":"numApprovals","type":"uint256"},{"name":"executed","type":"bool"},{"name":"cancelled","type":"bool"},{"name":"timestamp","type":"uint256"}]},
	{"type":"function","name":"approvals","stateMutability":"view","inputs":[{"name":"txHash","type":"bytes32"},{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"threshold","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getOwners","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"function","name":"isOwner","stateMutability":"view","inputs":[{"name":"addr","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"isModuleEnabled","stateMutability":"view","inputs":[{"name":"module","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getModules","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"function","name":"nonce","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getTransactionHash","stateMutability":"view","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"nonce","type":"uint256"}],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"addOwner","stateMutability":"nonpayable","inputs":[{"name":"owner","type":"address"}],"outputs":[]},
	{"type":"function","name":"removeOwner","stateMutability":"nonpayable","inputs":[{"name":"owner","type":"address"}],"outputs":[]},
	{"type":"function","name":"changeThreshold","stateMutability":"nonpayable","inputs":[{"name":"threshold","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"enableModule","stateMutability":"nonpayable","inputs":[{"name":"module","type":"address"}],"outputs":[]},
	{"type":"function","name":"disableModule","stateMutability":"nonpayable","inputs":[{"name":"prevModule","type":"address"},{"name":"module","type":"address"}],"outputs":[]},
	{"type":"event","name":"TransactionProposed","inputs":[{"name":"txHash","type":"bytes32","indexed":true},{"name":"proposer","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false},{"name":"data","type":"bytes","indexed":false},{"name":"nonce","type":"uint256","indexed":false}]},
	{"type":"event","name":"TransactionApproved","inputs":[{"name":"txHash","type":"bytes32","indexed":true},{"name":"owner","type":"address","indexed":true}]},
	{"type":"event","name":"ApprovalRevoked","inputs":[{"name":"txHash","type":"bytes32","indexed":true},{"name":"owner","type":"address","indexed":true}]},
	{"type":"event","name":"TransactionCancelled","inputs":[{"name":"txHash","type":"bytes32","indexed":true},{"name":"cancelledBy","type":"address","indexed":true}]},
	{"type":"event","name":"TransactionExecuted","inputs":[{"name":"txHash","type":"bytes32","indexed":true},{"name":"executedBy","type":"address","indexed":true}]},
	{"type":"event","name":"Deposit","inputs":[{"name":"sender","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

const factoryABIJSON = `[
	{"type":"function","name":"createWallet","stateMutability":"nonpayable","inputs":[{"name":"owners","type":"address[]"},{"name":"threshold","type":"uint256"},{"name":"salt","type":"bytes32"}],"outputs":[{"name":"wallet","type":"address"}]},
	{"type":"function","name":"implementation","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getWalletsByCreator","stateMutability":"view","inputs":[{"name":"creator","type":"address"}],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"event","name":"WalletCreated","inputs":[{"name":"wallet","type":"address","indexed":true},{"name":"creator","type":"address","indexed":true},{"name":"owners","type":"address[]","indexed":false},{"name":"threshold","type":"uint256","indexed":false}]}
]`

const recoveryModuleABIJSON = `[
	{"type":"function","name":"setupRecovery","stateMutability":"nonpayable","inputs":[{"name":"guardians","type":"address[]"},{"name":"guardianThreshold","type":"uint256"},{"name":"delay","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"initiateRecovery","stateMutability":"nonpayable","inputs":[{"name":"wallet","type":"address"},{"name":"newOwners","type":"address[]"},{"name":"newThreshold","type":"uint256"}],"outputs":[{"name":"recoveryHash","type":"bytes32"}]},
	{"type":"function","name":"approveRecovery","stateMutability":"nonpayable","inputs":[{"name":"wallet","type":"address"},{"name":"recoveryHash","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"executeRecovery","stateMutability":"nonpayable","inputs":[{"name":"wallet","type":"address"},{"name":"recoveryHash","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"cancelRecovery","stateMutability":"nonpayable","inputs":[{"name":"wallet","type":"address"},{"name":"recoveryHash","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"getRecovery","stateMutability":"view","inputs":[{"name":"wallet","type":"address"},{"name":"recoveryHash","type":"bytes32"}],"outputs":[{"name":"newOwners","type":"address[]"},{"name":"newThreshold","type":"uint256"},{"name":"approvalCount","type":"uint256"},{"name":"executionTime","type":"uint256"},{"name":"executed","type":"bool"},{"name":"cancelled","type":"bool"}]},
	{"type":"function","name":"getRecoveryConfig","stateMutability":"view","inputs":[{"name":"wallet","type":"address"}],"outputs":[{"name":"guardians","type":"address[]"},{"name":"guardianThreshold","type":"uint256"},{"name":"delay","type":"uint256"}]},
	{"type":"event","name":"RecoveryInitiated","inputs":[{"name":"wallet","type":"address","indexed":true},{"name":"recoveryHash","type":"bytes32","indexed":true}]}
]`

const dailyLimitModuleABIJSON = `[
	{"type":"function","name":"setDailyLimit","stateMutability":"nonpayable","inputs":[{"name":"limit","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getDailyLimit","stateMutability":"view","inputs":[{"name":"wallet","type":"address"}],"outputs":[{"name":"limit","type":"uint256"},{"name":"spentToday","type":"uint256"},{"name":"resetAt","type":"uint256"}]}
]`

const whitelistModuleABIJSON = `[
	{"type":"function","name":"addToWhitelist","stateMutability":"nonpayable","inputs":[{"name":"addr","type":"address"}],"outputs":[]},
	{"type":"function","name":"removeFromWhitelist","stateMutability":"nonpayable","inputs":[{"name":"addr","type":"address"}],"outputs":[]},
	{"type":"function","name":"getWhitelist","stateMutability":"view","inputs":[{"name":"wallet","type":"address"}],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"function","name":"isWhitelisted","stateMutability":"view","inputs":[{"name":"wallet","type":"address"},{"name":"addr","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

var (
	walletABI     = mustABI(walletABIJSON)
	factoryABI    = mustABI(factoryABIJSON)
	recoveryABI   = mustABI(recoveryModuleABIJSON)
	dailyLimitABI = mustABI(dailyLimitModuleABIJSON)
	whitelistABI  = mustABI(whitelistModuleABIJSON)
)
