package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/altovisual/artist-management-sub002/model"
	"github.com/altovisual/artist-management-sub002/pkg/doctemplate"
)

// DefaultSignerName labels a signature placeholder whose participant has no name
const DefaultSignerName = "Firmante"

// Compositor assembles the final contract HTML from a contract graph
type Compositor struct {
	library    *TemplateLibrary
	dateLayout string
	now        func() time.Time
}

func NewCompositor(library *TemplateLibrary, dateLayout string) *Compositor {
	if dateLayout == "" {
		dateLayout = "1/2/2006"
	}
	return &Compositor{
		library:    library,
		dateLayout: dateLayout,
		now:        time.Now,
	}
}

// SetClock replaces the time source used for current_date and current_year
func (c *Compositor) SetClock(now func() time.Time) {
	c.now = now
}

// Compose renders the contract template and appends one signature anchor
// paragraph per participant
func (c *Compositor) Compose(graph *model.ContractGraph) (string, error) {
	src, err := c.library.Resolve(&graph.Template)
	if err != nil {
		return "", err
	}

	tree, err := doctemplate.Parse(src)
	if err != nil {
		return "", &PipelineError{
			Kind:    KindTemplateMalformed,
			Message: "Document rendering failed",
			Details: err.Error(),
			Err:     err,
		}
	}

	var b strings.Builder
	b.WriteString(tree.Execute(c.Data(graph)))
	for i, p := range graph.Participants {
		b.WriteString(SignatureAnchor(i, p.Name))
	}
	return b.String(), nil
}

// Fingerprint hashes everything Compose depends on except the clock: the
// resolved template source, the template data without current_date and
// current_year, and the signature anchors.
func (c *Compositor) Fingerprint(graph *model.ContractGraph) (string, error) {
	src, err := c.library.Resolve(&graph.Template)
	if err != nil {
		return "", err
	}

	data := c.Data(graph)
	delete(data, "current_date")
	delete(data, "current_year")
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode template data: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(src))
	h.Write([]byte{0})
	h.Write(encoded)
	for i, p := range graph.Participants {
		h.Write([]byte(SignatureAnchor(i, p.Name)))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SignatureAnchor is the placeholder paragraph the provider uses to place
// the signature field of signer i
func SignatureAnchor(i int, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultSignerName
	}
	return fmt.Sprintf("<br/><p>Signature of %s: {{signature:%d}}</p>", html.EscapeString(name), i)
}

// Data builds the template data object for a contract graph
func (c *Compositor) Data(graph *model.ContractGraph) map[string]any {
	now := c.now()
	ct := graph.Contract
	w := graph.Work

	participants := make([]map[string]any, len(graph.Participants))
	for i, p := range graph.Participants {
		participants[i] = map[string]any{
			"id":                p.ID,
			"name":              p.Name,
			"email":             p.Email,
			"phone":             p.Phone,
			"role":              p.Role,
			"percentage":        p.Percentage,
			"ipi":               p.IPI,
			"artistic_name":     p.ArtisticName,
			"management_entity": p.ManagementEntity,
			"type":              p.Type,
		}
	}

	return map[string]any{
		"contract": map[string]any{
			"status":               ct.Status,
			"internal_reference":   ct.InternalReference,
			"signing_location":     ct.SigningLocation,
			"additional_notes":     ct.AdditionalNotes,
			"publisher":            ct.Publisher,
			"publisher_percentage": ct.PublisherPercentage,
			"co_publishers":        ct.CoPublishers,
			"publisher_admin":      ct.PublisherAdmin,
			"created_at":           c.formatDate(&ct.CreatedAt),
		},
		"work": map[string]any{
			"name":              w.Name,
			"alternative_title": w.AlternativeTitle,
			"iswc":              w.ISWC,
			"isrc":              w.ISRC,
			"upc":               w.UPC,
			"type":              w.Type,
			"status":            w.Status,
			"release_date":      c.formatDate(w.ReleaseDate),
		},
		"participants": participants,
		"current_date": now.Format(c.dateLayout),
		"current_year": now.Year(),
	}
}

// formatDate returns "" for absent dates, which renders as N/A
func (c *Compositor) formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(c.dateLayout)
}
