package main

import (
	"context"
	"fmt"

	"github.com/PabloGalante/worksession/internal/adapters/github"
	"github.com/PabloGalante/worksession/internal/adapters/llm"
	speechadapter "github.com/PabloGalante/worksession/internal/adapters/speech"
	firestorestore "github.com/PabloGalante/worksession/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/worksession/internal/adapters/storage/memory"
	sqlitestore "github.com/PabloGalante/worksession/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/worksession/internal/app/evidence"
	"github.com/PabloGalante/worksession/internal/app/worksession"
	"github.com/PabloGalante/worksession/internal/config"
	"github.com/PabloGalante/worksession/internal/domain"
	"github.com/PabloGalante/worksession/internal/observability"
)

func openStore(ctx context.Context, cfg *config.Config) (domain.Store, error) {
	log := observability.WithFields("storage_backend", cfg.StorageBackend)

	switch cfg.StorageBackend {
	case config.StorageFirestore:
		log.Info("using firestore storage", "project", cfg.GCPProjectID)
		store, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, fmt.Errorf("initializing firestore store: %w", err)
		}
		return store, nil
	case config.StorageSQLite:
		log.Info("using sqlite storage", "path", cfg.SQLitePath)
		store, err := sqlitestore.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("initializing sqlite store: %w", err)
		}
		return store, nil
	default:
		log.Info("using in-memory storage")
		return memstore.NewStore(), nil
	}
}

// aiStack groups the model-backed ports. Mock and Vertex variants are
// interchangeable.
type aiStack struct {
	prompts     domain.PromptGenerator
	synthesizer domain.EvidenceSynthesizer
	speech      domain.SpeechSynthesizer
}

func newAIStack(ctx context.Context, cfg *config.Config) (*aiStack, error) {
	if cfg.UseMockLLM {
		observability.Logger().Info("using mock llm and speech")
		mock := llm.NewMockLLM()
		return &aiStack{
			prompts:     mock,
			synthesizer: mock,
			speech:      speechadapter.NewMockSynthesizer(),
		}, nil
	}

	client, err := llm.NewGenAIClient(ctx, cfg.GCPProjectID, cfg.GCPLocation)
	if err != nil {
		return nil, err
	}
	observability.Logger().Info("using vertex llm and speech", "model", cfg.ModelName, "speech_model", cfg.SpeechModel)

	vertex := llm.NewVertexClient(client, cfg.ModelName)
	return &aiStack{
		prompts:     vertex,
		synthesizer: vertex,
		speech:      speechadapter.NewVertexSynthesizer(client, cfg.SpeechModel, cfg.SpeechVoice),
	}, nil
}

type services struct {
	store    domain.Store
	ai       *aiStack
	sessions *worksession.Service
	evidence *evidence.Service
}

func newServices(ctx context.Context, cfg *config.Config) (*services, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ai, err := newAIStack(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var inspector domain.RepositoryInspector
	if cfg.InspectRepositories() {
		inspector = github.NewClient(cfg.GitHubAPIURL, cfg.GitHubToken)
	}

	return &services{
		store:    store,
		ai:       ai,
		sessions: worksession.NewService(store, ai.prompts, inspector),
		evidence: evidence.NewService(store, ai.synthesizer),
	}, nil
}

func (s *services) Close() error {
	return s.store.Close()
}
