package access

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornicrdf/pkg/audit"
	"github.com/orneryd/nornicrdf/pkg/rdf"
)

func TestAuditedRecordsDenials(t *testing.T) {
	var buf bytes.Buffer
	ctl := Audited(&switchController{read: true}, "viewer", audit.NewLoggerWithWriter(&buf))
	g := NewSecuredGraph(newPopulated(t), graphName, ctl)

	_, err := g.Size()
	require.NoError(t, err)
	assert.Empty(t, buf.String(), "granted checks are not recorded")

	_, err = g.Add(rdf.NewTriple(rdf.IRI("urn:x"), "urn:p", rdf.IRI("urn:y")))
	assert.ErrorIs(t, err, ErrAccessDenied)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var e audit.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &e))
	assert.Equal(t, audit.EventAccessDenied, e.Type)
	assert.Equal(t, "viewer", e.Principal)
	assert.Equal(t, string(graphName), e.Graph)
	assert.Equal(t, string(PermWrite), e.Permission)
}
