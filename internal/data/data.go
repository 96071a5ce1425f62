package data

import (
	"github.com/marcAnfuso/api-casinos/internal/biz/repo"
)

// Repositories contains all repository implementations.
type Repositories struct {
	Leads       repo.LeadRepo
	Classifier  repo.ClassifierRepo
	Attribution repo.AttributionRepo
	Provision   repo.ProvisionRepo
	Journal     repo.JournalRepo
}

// NewRepositories creates all repositories. An empty classifier API key
// yields a fail-open classifier; journalPath is required.
func NewRepositories(classifierKey, classifierBaseURL, classifierModel, journalPath string) (*Repositories, error) {
	journal, err := NewJournalRepo(journalPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Leads:       NewKommoRepo(),
		Classifier:  NewVisionClassifier(classifierKey, classifierBaseURL, classifierModel),
		Attribution: NewAttributionRepo(),
		Provision:   NewProvisionRepo(),
		Journal:     journal,
	}, nil
}
