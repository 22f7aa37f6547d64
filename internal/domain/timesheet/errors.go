package timesheet

import (
	"errors"

	"timetrack/internal/platform/apperr"
)

var (
	ErrTimesheetNotFound = apperr.NotFound("timesheet_not_found", "timesheet not found")
	ErrEntryNotFound     = apperr.NotFound("entry_not_found", "entry not found")

	ErrNotOwner     = apperr.Forbidden("not_timesheet_owner", "only the timesheet owner may do this")
	ErrNotEditable  = apperr.Conflict("timesheet_not_editable", "timesheet cannot be edited in its current status")
	ErrInvalidState = apperr.Conflict("invalid_state", "timesheet is no longer in the expected state")

	ErrWeekStartRequired = apperr.Validation("week_start_required", "week start date is required").
		WithField("weekStartDate", "required")
	ErrInvalidWeekRange = apperr.Validation("invalid_week_range", "from must not be after to").
		WithField("from", "must be on or before to")
	ErrEmptyTimesheet = apperr.Validation("timesheet_empty", "cannot submit a timesheet without entries")
	ErrReasonRequired = apperr.Validation("reason_required", "a rejection reason is required").
		WithField("reason", "required")

	ErrWorkDateRequired = apperr.Validation("work_date_required", "work date is required").
		WithField("workDate", "required")
	ErrWorkDateOutsideWeek = apperr.Validation("work_date_outside_week", "work date must fall within the timesheet week").
		WithField("workDate", "must fall within the timesheet week")
	ErrProjectRequired = apperr.Validation("project_required", "project is required").
		WithField("projectId", "required")
	ErrInvalidProject = apperr.Validation("invalid_project", "project must be active and belong to this organization").
		WithField("projectId", "must be an active project in this organization")
	ErrInvalidDuration = apperr.Validation("invalid_duration", "duration must be greater than zero").
		WithField("durationMinutes", "must be greater than zero")
	ErrTimesRequired = apperr.Validation("times_required", "start and end times are required when no duration is given").
		WithField("startTime", "required").
		WithField("endTime", "required")
	ErrInvalidTimeRange = apperr.Validation("invalid_time_range", "end time must be after start time").
		WithField("endTime", "must be after startTime")
	ErrInvalidClock = apperr.Validation("invalid_time", "time of day is out of range")

	// ErrDuplicateWeek is returned by stores when the (organization, user,
	// week) row already exists.
	ErrDuplicateWeek = errors.New("timesheet already exists for week")
)
