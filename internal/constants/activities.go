package constants

// Activity names used for workflow registration and execution. The
// workflow invokes activities by name so tests can substitute stubs.
const (
	// Run lifecycle
	BeginRunActivity  = "BeginRun"
	FinishRunActivity = "FinishRun"

	// Generation
	RunAgentTaskActivity = "RunAgentTask"

	// Research
	SearchKnowledgeActivity = "SearchKnowledge"

	// Validation
	ValidateDraftActivity = "ValidateDraft"

	// Distribution
	PersistArtifactsActivity = "PersistArtifacts"
)
