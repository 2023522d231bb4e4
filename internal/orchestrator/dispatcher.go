package orchestrator

import (
	"errors"
	"strings"

	"github.com/querydesk/querydesk/internal/catalog"
)

// resolveSQL turns a QueryRequest into one validated SQL string, or fails
// before anything touches the network. The length limit applies to resolved
// named queries as well as literal SQL.
func (s *Service) resolveSQL(req QueryRequest) (string, error) {
	hasSQL := strings.TrimSpace(req.SQL) != ""
	hasNamed := strings.TrimSpace(req.NamedQueryID) != ""

	var sql string
	switch {
	case hasSQL && hasNamed:
		return "", newFailure(KindInvalidRequest, "specify either sql or a named query id, not both")
	case hasNamed:
		entry, err := s.Catalog.Lookup(strings.TrimSpace(req.NamedQueryID))
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return "", newFailure(KindNotFound, "named query %q does not exist", req.NamedQueryID)
			}
			return "", newFailure(KindInvalidRequest, "resolve named query: %v", err)
		}
		sql = strings.TrimSpace(entry.SQL)
	case hasSQL:
		sql = strings.TrimSpace(req.SQL)
	default:
		return "", newFailure(KindInvalidRequest, "sql or named query id is required")
	}

	if sql == "" {
		return "", newFailure(KindInvalidRequest, "sql is required")
	}
	if len(sql) > s.maxSQLBytes() {
		return "", newFailure(KindInvalidRequest, "sql exceeds maximum length of %d bytes", s.maxSQLBytes())
	}
	return sql, nil
}
