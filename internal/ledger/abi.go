package ledger

// HyperEngineABI is the subset of the HyperEngine contract this service calls
const HyperEngineABI = `[
  {"type":"function","name":"deposit","stateMutability":"nonpayable",
   "inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable",
   "inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"autoRebalance","stateMutability":"nonpayable",
   "inputs":[],"outputs":[]},
  {"type":"function","name":"getUserStats","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[
     {"name":"principal","type":"uint256"},
     {"name":"currentRewards","type":"uint256"},
     {"name":"totalEarned","type":"uint256"},
     {"name":"averageAPY","type":"uint256"},
     {"name":"hourlyRate","type":"uint256"},
     {"name":"dailyRate","type":"uint256"}]},
  {"type":"function","name":"getAverageAPY","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"positions","stateMutability":"view",
   "inputs":[{"name":"","type":"address"}],
   "outputs":[
     {"name":"principal","type":"uint256"},
     {"name":"aaveAmount","type":"uint256"},
     {"name":"uniswapLP","type":"uint256"},
     {"name":"compoundAmount","type":"uint256"},
     {"name":"curveAmount","type":"uint256"},
     {"name":"yearnAmount","type":"uint256"},
     {"name":"stakingAmount","type":"uint256"},
     {"name":"lastUpdate","type":"uint256"},
     {"name":"totalRewards","type":"uint256"},
     {"name":"aiOptLevel","type":"uint8"}]},
  {"type":"function","name":"strategies","stateMutability":"view",
   "inputs":[{"name":"","type":"uint256"}],
   "outputs":[
     {"name":"name","type":"string"},
     {"name":"protocol","type":"address"},
     {"name":"baseAPY","type":"uint256"},
     {"name":"boostedAPY","type":"uint256"},
     {"name":"active","type":"bool"},
     {"name":"tvl","type":"uint256"}]}
]`

// AIOptimizerABI is the subset of the AI Optimizer contract this service calls
const AIOptimizerABI = `[
  {"type":"function","name":"optimizeYield","stateMutability":"nonpayable",
   "inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"predictReturns","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"},{"name":"timeHorizon","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"userModels","stateMutability":"view",
   "inputs":[{"name":"","type":"address"}],
   "outputs":[
     {"name":"predictionAccuracy","type":"uint256"},
     {"name":"lastUpdate","type":"uint256"},
     {"name":"active","type":"bool"}]}
]`
