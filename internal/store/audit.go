package store

import (
	"database/sql"
	"fmt"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/google/uuid"
)

// AppendAuditTx writes one audit entry inside the caller's transaction so
// the entry exists iff the state change committed.
func AppendAuditTx(tx *sql.Tx, e domain.AuditEntry) error {
	before, err := jsonValue(e.Before)
	if err != nil {
		return err
	}
	after, err := jsonValue(e.After)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO audit_log (id, actor_user_id, action, resource_type, resource_id, request_id, before, after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, uuid.New(), nullString(e.ActorUserID), e.Action, e.ResourceType, e.ResourceID, nullString(e.RequestID), before, after)
	if err != nil {
		return fmt.Errorf("append audit %s: %w", e.Action, err)
	}
	return nil
}
