package timesheet

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"timetrack/internal/platform/optional"
)

// ListEntries returns the non-deleted entries of a timesheet the actor can see.
func (s *Service) ListEntries(ctx context.Context, actorID, orgID, timesheetID string) ([]Entry, error) {
	var out []Entry
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		ts, _, err := loadVisible(ctx, st, actorID, orgID, timesheetID, false)
		if err != nil {
			return err
		}
		out, err = st.ListEntries(ctx, ts.ID)
		return err
	})
	return out, err
}

func (s *Service) CreateEntry(ctx context.Context, actorID, orgID, timesheetID string, in EntryInput) (Entry, error) {
	var out Entry
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		ts, err := editableTimesheet(ctx, st, actorID, orgID, timesheetID)
		if err != nil {
			return err
		}

		if in.WorkDate.IsZero() {
			return ErrWorkDateRequired
		}
		if !InWeek(in.WorkDate, ts.WeekStartDate) {
			return ErrWorkDateOutsideWeek
		}
		projectID := strings.TrimSpace(in.ProjectID)
		if projectID == "" {
			return ErrProjectRequired
		}
		minutes, err := ComputeDurationMinutes(in.StartTime, in.EndTime, in.DurationMinutes)
		if err != nil {
			return err
		}
		if err := checkProject(ctx, st, orgID, projectID); err != nil {
			return err
		}

		now := s.now().UTC()
		e := Entry{
			ID:              uuid.NewString(),
			TimesheetID:     ts.ID,
			ProjectID:       projectID,
			WorkDate:        DateOnly(in.WorkDate),
			StartTime:       in.StartTime,
			EndTime:         in.EndTime,
			DurationMinutes: minutes,
			Notes:           trimmedPtr(in.Notes),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := st.InsertEntry(ctx, e); err != nil {
			return err
		}
		if err := st.TouchTimesheet(ctx, ts.ID, now); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// UpdateEntry applies a partial update. Setting IsDeleted soft-deletes the
// entry and ignores the other fields.
func (s *Service) UpdateEntry(ctx context.Context, actorID, orgID, timesheetID, entryID string, patch EntryPatch) (Entry, error) {
	var out Entry
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		ts, err := editableTimesheet(ctx, st, actorID, orgID, timesheetID)
		if err != nil {
			return err
		}
		e, err := st.GetEntry(ctx, ts.ID, entryID)
		if err != nil {
			return err
		}
		if e.IsDeleted {
			return ErrEntryNotFound
		}
		now := s.now().UTC()

		if deleted, ok := patch.IsDeleted.Get(); ok && deleted {
			e.IsDeleted = true
			e.UpdatedAt = now
			if err := st.UpdateEntry(ctx, e); err != nil {
				return err
			}
			if err := st.TouchTimesheet(ctx, ts.ID, now); err != nil {
				return err
			}
			out = e
			return nil
		}

		if patch.WorkDate.IsNull() {
			return ErrWorkDateRequired
		}
		if workDate, ok := patch.WorkDate.Get(); ok {
			if !InWeek(workDate, ts.WeekStartDate) {
				return ErrWorkDateOutsideWeek
			}
			e.WorkDate = DateOnly(workDate)
		}

		if patch.ProjectID.IsNull() {
			return ErrProjectRequired
		}
		if projectID, ok := patch.ProjectID.Get(); ok {
			projectID = strings.TrimSpace(projectID)
			if projectID == "" {
				return ErrProjectRequired
			}
			if err := checkProject(ctx, st, orgID, projectID); err != nil {
				return err
			}
			e.ProjectID = projectID
		}

		patch.StartTime.Apply(&e.StartTime)
		patch.EndTime.Apply(&e.EndTime)
		if patch.Notes.Provided() {
			e.Notes = trimmedPtr(patch.Notes.Ptr())
		}

		if patch.DurationMinutes.Provided() || patch.StartTime.Provided() || patch.EndTime.Provided() {
			minutes, err := ComputeDurationMinutes(e.StartTime, e.EndTime, patch.DurationMinutes.Ptr())
			if err != nil {
				return err
			}
			e.DurationMinutes = minutes
		}

		e.UpdatedAt = now
		if err := st.UpdateEntry(ctx, e); err != nil {
			return err
		}
		if err := st.TouchTimesheet(ctx, ts.ID, now); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// DeleteEntry soft-deletes an entry.
func (s *Service) DeleteEntry(ctx context.Context, actorID, orgID, timesheetID, entryID string) error {
	_, err := s.UpdateEntry(ctx, actorID, orgID, timesheetID, entryID, EntryPatch{IsDeleted: optional.Some(true)})
	return err
}

func editableTimesheet(ctx context.Context, st StoreAPI, actorID, orgID, timesheetID string) (Timesheet, error) {
	ts, _, err := loadVisible(ctx, st, actorID, orgID, timesheetID, true)
	if err != nil {
		return Timesheet{}, err
	}
	if ts.UserID != actorID {
		return Timesheet{}, ErrNotOwner
	}
	if !ts.Editable() {
		return Timesheet{}, ErrNotEditable
	}
	return ts, nil
}

// checkProject reports projects from other organizations the same way as
// inactive ones.
func checkProject(ctx context.Context, st StoreAPI, orgID, projectID string) error {
	if _, err := uuid.Parse(projectID); err != nil {
		return ErrInvalidProject
	}
	ok, err := st.ProjectIsActiveInOrganization(ctx, orgID, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidProject
	}
	return nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	return trimmedOrNil(*value)
}
