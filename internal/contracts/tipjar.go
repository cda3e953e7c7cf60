// Package contracts holds the ABI of the TipJar escrow contract.
package contracts

// TipJarABI is the subset of the TipJar ABI the relay and CLI use.
const TipJarABI = `[
  {"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"_relayerAddress","type":"address"}]},
  {"type":"function","name":"tip","stateMutability":"payable",
   "inputs":[{"name":"fan","type":"address"},{"name":"creator","type":"address"},{"name":"amount","type":"uint256"},{"name":"nonce","type":"uint256"},{"name":"signature","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"updateRelayer","stateMutability":"nonpayable","inputs":[{"name":"_newRelayer","type":"address"}],"outputs":[]},
  {"type":"function","name":"emergencyWithdraw","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"getNonce","stateMutability":"view","inputs":[{"name":"fan","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getClaimableBalance","stateMutability":"view","inputs":[{"name":"creator","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getDomainSeparator","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"isSignatureProcessed","stateMutability":"view","inputs":[{"name":"digest","type":"bytes32"},{"name":"signature","type":"bytes"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"relayerAddress","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"TipReceived","anonymous":false,
   "inputs":[{"name":"fan","type":"address","indexed":true},{"name":"creator","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"nonce","type":"uint256","indexed":false}]},
  {"type":"event","name":"FundsWithdrawn","anonymous":false,
   "inputs":[{"name":"creator","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"RelayerUpdated","anonymous":false,
   "inputs":[{"name":"oldRelayer","type":"address","indexed":true},{"name":"newRelayer","type":"address","indexed":true}]},
  {"type":"error","name":"OwnableUnauthorizedAccount","inputs":[{"name":"account","type":"address"}]}
]`
