package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"timetrack/internal/domain/membership"
	"timetrack/internal/platform/querier"
	"timetrack/internal/platform/requestctx"
)

type Event struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	ActorID        *string         `json:"actorUserId,omitempty"`
	Action         string          `json:"action"`
	EntityType     string          `json:"entityType"`
	EntityID       string          `json:"entityId"`
	RequestID      *string         `json:"requestId,omitempty"`
	IP             *string         `json:"ip,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	After          json.RawMessage `json:"after,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	ActorUser  string
}

// Action names recorded by the HTTP layer.
const (
	ActionTimesheetCreate  = "timesheet.create"
	ActionTimesheetSubmit  = "timesheet.submit"
	ActionTimesheetApprove = "timesheet.approve"
	ActionTimesheetReject  = "timesheet.reject"
	ActionEntryCreate      = "timesheet.entry.create"
	ActionEntryUpdate      = "timesheet.entry.update"
	ActionEntryDelete      = "timesheet.entry.delete"
	ActionOrgCreate        = "organization.create"
	ActionOrgUpdate        = "organization.update"
	ActionMemberAdd        = "membership.add"
	ActionMemberUpdate     = "membership.update"
	ActionMemberCreateUser = "membership.create_user"
	ActionClientCreate     = "client.create"
	ActionClientUpdate     = "client.update"
	ActionClientDelete     = "client.delete"
	ActionProjectCreate    = "project.create"
	ActionProjectUpdate    = "project.update"
	ActionProjectAssign    = "project.assign"
	ActionProjectUnassign  = "project.unassign"
)

type Service struct {
	DB      querier.Querier
	Members membership.Directory
}

func New(db querier.Querier, members membership.Directory) *Service {
	return &Service{DB: db, Members: members}
}

// Record writes one event. Request id and client IP come from ctx.
func (s *Service) Record(ctx context.Context, orgID, actorID, action, entityType, entityID string, after any) error {
	var afterJSON []byte
	if after != nil {
		payload, err := json.Marshal(after)
		if err != nil {
			return err
		}
		afterJSON = payload
	}

	_, err := s.DB.Exec(ctx, `
    INSERT INTO audit_events (id, organization_id, actor_user_id, action, entity_type, entity_id, request_id, ip, after_json)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, uuid.NewString(), orgID, nullable(actorID), action, entityType, entityID,
		nullable(requestctx.GetRequestID(ctx)), nullable(requestctx.GetClientIP(ctx)), afterJSON)
	return err
}

// List returns the organization's trail newest first. Admins only.
func (s *Service) List(ctx context.Context, actorID, orgID string, filter Filter, limit, offset int) ([]Event, int, error) {
	if _, err := membership.RequireAnyRole(ctx, s.Members, actorID, orgID, membership.RoleAdmin); err != nil {
		return nil, 0, err
	}

	countQuery, countArgs := buildBaseQuery("SELECT COUNT(1)", orgID, filter)
	var total int
	if err := s.DB.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args := buildBaseQuery("SELECT id, organization_id, actor_user_id, action, entity_type, entity_id, request_id, ip, created_at, after_json", orgID, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.OrganizationID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt, &evt.After); err != nil {
			return nil, 0, err
		}
		out = append(out, evt)
	}
	return out, total, rows.Err()
}

func buildBaseQuery(prefix, orgID string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_events WHERE organization_id = $1"
	args := []any{orgID}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", len(args)+1)
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", len(args)+1)
		args = append(args, filter.EntityType)
	}
	if filter.ActorUser != "" {
		query += fmt.Sprintf(" AND actor_user_id::text = $%d", len(args)+1)
		args = append(args, filter.ActorUser)
	}
	return query, args
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
