package synthesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/meeting"
)

// reportPayload is the fixed schema the synthesis service must produce.
// Unknown fields are tolerated (models decorate freely); missing required
// fields are not.
type reportPayload struct {
	SummaryEN string        `json:"summary_en"`
	SummaryHI string        `json:"summary_hi"`
	Minutes   []string      `json:"mom"`
	Actions   []actionEntry `json:"actions"`
}

type actionEntry struct {
	Task     string `json:"task"`
	Owner    string `json:"owner"`
	Deadline string `json:"deadline"`
}

// parsePayload validates raw model output against the report schema. Any
// violation is reported as ErrSchemaInvalid so the orchestrator can apply its
// retry-then-fallback policy.
func parsePayload(raw json.RawMessage) (*reportPayload, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty response", renaerrors.ErrSchemaInvalid)
	}

	var p reportPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", renaerrors.ErrSchemaInvalid, err)
	}

	if strings.TrimSpace(p.SummaryEN) == "" {
		return nil, fmt.Errorf("%w: summary_en is required", renaerrors.ErrSchemaInvalid)
	}
	if p.Minutes == nil {
		return nil, fmt.Errorf("%w: mom list is required", renaerrors.ErrSchemaInvalid)
	}
	for i, a := range p.Actions {
		if strings.TrimSpace(a.Task) == "" {
			return nil, fmt.Errorf("%w: actions[%d].task is required", renaerrors.ErrSchemaInvalid, i)
		}
	}

	return &p, nil
}

// actionItems converts schema entries to domain action items.
func (p *reportPayload) actionItems() []meeting.ActionItem {
	items := make([]meeting.ActionItem, 0, len(p.Actions))
	for _, a := range p.Actions {
		owner := a.Owner
		if strings.TrimSpace(owner) == "" {
			owner = "Unassigned"
		}
		items = append(items, meeting.ActionItem{
			Task:     a.Task,
			Owner:    owner,
			Deadline: a.Deadline,
		})
	}
	return items
}
