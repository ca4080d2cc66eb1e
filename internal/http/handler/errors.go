package handler

const (
	errInternalServer = "Internal server error"
	errInvalidCursor  = "Invalid pagination cursor"

	errTargetNotFound     = "Target not found"
	errTargetNameConflict = "Target with this name already exists"
	errInvalidTarget      = "Invalid target"

	errScheduleNotFound      = "Schedule not found"
	errInvalidCronExpr       = "Invalid cron expression"
	errInvalidScheduleType   = "interval_seconds and cron_expression must match schedule_type, exactly one set"
	errInvalidWindow         = "At most one of duration_seconds and max_runs may be set"
	errScheduleNameConflict  = "Schedule with this name already exists"
	errScheduleAlreadyPaused = "Schedule is already paused"
	errScheduleNotPaused     = "Schedule is not paused"
	errScheduleCompleted     = "Schedule is completed and cannot be modified"

	errRunNotFound = "Run not found"
)
