package importer

import (
	"encoding/json"

	"github.com/noah-isme/edt-scheduler/internal/models"
)

// Export renders the canonical JSON form of a document.
func Export(doc *models.ProjectDocument) ([]byte, error) {
	if doc == nil {
		doc = &models.ProjectDocument{}
	}
	out := *doc
	out.EnsureMaps()
	return json.MarshalIndent(&out, "", "  ")
}
