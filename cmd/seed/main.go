// Package main provides a tool to seed the database with a demo dataset and
// partially labeled sessions.
//
// It creates the admin account when the server has not been set up, a few
// labelers, one scored review dataset, and has each labeler work through a
// random number of pages.
//
// Usage:
//
//	DATA_PATH=~/sentilabel go run ./cmd/seed
//	DATA_PATH=~/sentilabel go run ./cmd/seed --labelers 5 --entries 200
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sentilabel/sentilabel-server/internal/auth"
	"github.com/sentilabel/sentilabel-server/internal/domain"
	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
	"github.com/sentilabel/sentilabel-server/internal/labeling"
	"github.com/sentilabel/sentilabel-server/internal/service"
	"github.com/sentilabel/sentilabel-server/internal/shuffle"
	"github.com/sentilabel/sentilabel-server/internal/store/sqlite"
)

var (
	labelerCount = flag.Int("labelers", 3, "Number of labeler accounts to create")
	entryCount   = flag.Int("entries", 120, "Number of reviews in the demo dataset")
	password     = flag.String("password", "password123", "Password for every seeded account")
)

const pageSize = 10

var reviewsByScore = map[int][]string{
	1: {"Terrible app, crashes every time I open it", "Worst update ever, lost all my data", "I hate the new layout"},
	2: {"Pretty bad since the redesign", "Slow and buggy on my phone", "Ads everywhere, awful experience"},
	3: {"It does the job", "Okay for now, nothing special", "Some features are fine, others are missing"},
	4: {"Good app overall", "Works well, a few rough edges", "Nice improvements in this version"},
	5: {"Excellent, love it", "Perfect for what I need", "Amazing support and great features"},
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/sentilabel")
	}
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		log.Fatalf("Failed to create data path: %v", err)
	}

	dbPath := filepath.Join(dataPath, "sentilabel.db")
	fmt.Printf("Opening database at: %s\n", dbPath)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	s, err := sqlite.Open(dbPath, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	key, err := auth.LoadOrGenerateKey(dataPath)
	if err != nil {
		log.Fatalf("Failed to load auth key: %v", err)
	}
	tokens, err := auth.NewTokenService(key, 15*time.Minute, 24*time.Hour)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}

	sessions := labeling.NewSessionRegistry(time.Hour)
	perms := shuffle.NewCache(time.Hour, 10*time.Minute)
	tracker := labeling.NewProgressTracker(s, logger)
	loader := labeling.NewPageLoader(s, perms, sessions, tracker, nil, pageSize, logger)
	batcher := labeling.NewBatcher(s, loader, nil, logger)

	authService := service.NewAuthService(s, tokens, service.NewSessionService(s, tokens, logger), true, logger)
	datasets := service.NewDatasetService(s, nil, perms, sessions, tracker,
		service.DatasetConfig{AutoNegativeLowScores: true}, logger)
	labelingService := service.NewLabelingService(loader, batcher, tracker, pageSize, logger)

	ctx := context.Background()

	admin := ensureAdmin(ctx, authService)
	fmt.Printf("Admin: %s\n", admin.UserID)

	res, err := datasets.Upload(ctx, admin, service.UploadRequest{
		Name:         fmt.Sprintf("Demo reviews %s", time.Now().Format("2006-01-02 15:04")),
		Description:  "Generated by the seed tool",
		LabelingType: domain.LabelingMultiClass,
		File:         strings.NewReader(generateCSV(*entryCount)),
	})
	if err != nil {
		log.Fatalf("Failed to create dataset: %v", err)
	}
	ds := res.Dataset
	fmt.Printf("Dataset %s: %d entries, invite code %s\n", ds.ID, ds.TotalEntries, ds.InviteCode)

	for n := range *labelerCount {
		email := fmt.Sprintf("labeler%d@example.com", n+1)
		v, err := ensureLabeler(ctx, authService, email)
		if err != nil {
			log.Printf("Skipping %s: %v", email, err)
			continue
		}

		joined, err := datasets.Join(ctx, v, ds.InviteCode)
		if err != nil {
			log.Fatalf("Failed to join %s: %v", email, err)
		}

		pages := rand.IntN(ds.TotalEntries/pageSize + 1)
		labeled := labelPages(ctx, labelingService, v, ds.ID, pages)
		fmt.Printf("  %s: %d auto labels, %d labeled over %d pages\n", email, joined.AutoLabeled, labeled, pages)
	}

	fmt.Println("Done.")
}

func ensureAdmin(ctx context.Context, a *service.AuthService) labeling.Viewer {
	resp, err := a.Setup(ctx, service.SetupRequest{
		Email:       "admin@example.com",
		Password:    *password,
		DisplayName: "Admin",
	}, service.ClientInfo{UserAgent: "seed"})
	if err == nil {
		return labeling.Viewer{UserID: resp.User.ID, IsAdmin: true}
	}
	if domainerrors.CodeOf(err) != domainerrors.CodeAlreadyConfigured {
		log.Fatalf("Failed to set up admin: %v", err)
	}

	resp, err = a.Login(ctx, service.LoginRequest{Email: "admin@example.com", Password: *password}, service.ClientInfo{UserAgent: "seed"})
	if err != nil {
		log.Fatalf("Server already set up and admin@example.com login failed: %v", err)
	}
	return labeling.Viewer{UserID: resp.User.ID, IsAdmin: resp.User.IsAdmin()}
}

func ensureLabeler(ctx context.Context, a *service.AuthService, email string) (labeling.Viewer, error) {
	resp, err := a.Register(ctx, service.RegisterRequest{Email: email, Password: *password}, service.ClientInfo{UserAgent: "seed"})
	if err == nil {
		return labeling.Viewer{UserID: resp.User.ID}, nil
	}
	if domainerrors.CodeOf(err) != domainerrors.CodeAlreadyExists {
		return labeling.Viewer{}, err
	}
	resp, err = a.Login(ctx, service.LoginRequest{Email: email, Password: *password}, service.ClientInfo{UserAgent: "seed"})
	if err != nil {
		return labeling.Viewer{}, err
	}
	return labeling.Viewer{UserID: resp.User.ID}, nil
}

// labelPages labels up to pages pages, choosing a label that mostly follows
// the review score.
func labelPages(ctx context.Context, svc *service.LabelingService, v labeling.Viewer, datasetID string, pages int) int {
	view, err := svc.Resume(ctx, v, datasetID)
	if err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}

	total := 0
	for range pages {
		labels := make(map[string]string, len(view.Entries))
		for _, e := range view.Entries {
			labels[e.ID] = string(guessLabel(e.Score))
		}
		if len(labels) == 0 {
			break
		}

		res, err := svc.Submit(ctx, v, datasetID, service.SubmitRequest{
			Page:   view.Page,
			Filter: view.Filter,
			Labels: labels,
		})
		if err != nil {
			var derr *domainerrors.Error
			if errors.As(err, &derr) {
				log.Printf("Submit rejected: %s", derr.Message)
				break
			}
			log.Fatalf("Failed to submit labels: %v", err)
		}
		total += res.Inserted + res.Redirected
		if res.DatasetComplete || !res.Advanced {
			break
		}
		view = res.View
	}
	return total
}

func guessLabel(score *int) domain.LabelValue {
	if rand.IntN(10) == 0 {
		return []domain.LabelValue{domain.LabelPositive, domain.LabelNeutral, domain.LabelNegative}[rand.IntN(3)]
	}
	switch {
	case score == nil || *score == 3:
		return domain.LabelNeutral
	case *score < 3:
		return domain.LabelNegative
	default:
		return domain.LabelPositive
	}
}

func generateCSV(n int) string {
	var b strings.Builder
	b.WriteString("review,rating\n")
	for i := range n {
		score := rand.IntN(5) + 1
		options := reviewsByScore[score]
		text := options[rand.IntN(len(options))]
		if i%15 == 0 {
			// Some rows have no score.
			fmt.Fprintf(&b, "%q,\n", fmt.Sprintf("%s (#%d)", text, i+1))
			continue
		}
		fmt.Fprintf(&b, "%q,%d\n", fmt.Sprintf("%s (#%d)", text, i+1), score)
	}
	return b.String()
}
