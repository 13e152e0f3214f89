package tracing

func WorkflowSpanName(workflowName string) string {
	return "Workflow: " + workflowName
}

func ActivitySpanName(activityName string) string {
	return "Activity: " + activityName
}
