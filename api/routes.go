package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// MetricsEndpoint exposes the prometheus metrics
	MetricsEndpoint = "/metrics"
	// ProversEndpoint lists the addresses of the local provers
	ProversEndpoint = "/provers"
	// ContractsEndpoint is the endpoint for creating and listing contracts
	ContractsEndpoint = "/contracts"
	// ContractEndpoint is the endpoint to get the contract point
	ContractURLParam = "contractId"
	ContractEndpoint = "/contracts/{" + ContractURLParam + "}"
	// ContractVotesEndpoint is the endpoint for submitting a vote
	ContractVotesEndpoint = ContractEndpoint + "/votes"
	// ContractReceiptsEndpoint lists the settled receipts of a contract, and
	// accepts receipts proved by remote provers
	ContractReceiptsEndpoint = ContractEndpoint + "/receipts"
	// ContractReceiptEndpoint returns a settled receipt with its proof of
	// settlement
	ReceiptURLParam         = "receiptId"
	ContractReceiptEndpoint = ContractReceiptsEndpoint + "/{" + ReceiptURLParam + "}"
)
