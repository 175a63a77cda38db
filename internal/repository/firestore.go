package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sportschatplus/ingestion/internal/config"
	"sportschatplus/ingestion/internal/models"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// FirestoreConfig holds the service account used to reach Firestore
type FirestoreConfig struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string
}

func (c FirestoreConfig) credentialsJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   c.ProjectID,
		"client_email": c.ClientEmail,
		"private_key":  c.PrivateKey,
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
}

// FirestoreStore stores one sport's collections in Firestore.
// Every write stamps LastUpdated (or timestamp) with the server time.
type FirestoreStore struct {
	Client *firestore.Client
	sport  config.Sport
}

// NewFirestoreStore connects to Firestore with the given service account.
// FIRESTORE_EMULATOR_HOST, when set, is honoured by the client library.
func NewFirestoreStore(ctx context.Context, cfg FirestoreConfig, sport config.Sport) (*FirestoreStore, error) {
	creds, err := cfg.credentialsJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to build firestore credentials: %w", err)
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	log.Info().
		Str("project", cfg.ProjectID).
		Str("sport", sport.Key).
		Str("games", sport.GamesCollection).
		Str("teams", sport.TeamsCollection).
		Msg("Firestore client created")

	return &FirestoreStore{Client: client, sport: sport}, nil
}

// Games returns the sport's game collection
func (s *FirestoreStore) Games() GameStore {
	return firestoreGames{col: s.Client.Collection(s.sport.GamesCollection), sport: s.sport}
}

// Teams returns the sport's team collection
func (s *FirestoreStore) Teams() TeamStore {
	return firestoreTeams{col: s.Client.Collection(s.sport.TeamsCollection), sport: s.sport}
}

// FetchLogs returns the shared fetch log collection
func (s *FirestoreStore) FetchLogs() FetchLogStore {
	return firestoreLogs{col: s.Client.Collection(s.sport.FetchLogsCollection)}
}

// SetupLogs returns the shared setup log collection
func (s *FirestoreStore) SetupLogs() SetupLogStore {
	return firestoreSetupLogs{col: s.Client.Collection(s.sport.SetupLogsCollection)}
}

// ProbeCollection reads at most one document of the collection
func (s *FirestoreStore) ProbeCollection(ctx context.Context, name string) (err error) {
	defer observe("probe", name, time.Now(), &err)

	_, err = first(ctx, s.Client.Collection(name).Query)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read collection %s: %w", name, err)
	}
	return nil
}

// Health writes and deletes a probe document
func (s *FirestoreStore) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ref := s.Client.Collection("test").Doc("fetcher_test")
	if _, err := ref.Set(ctx, map[string]interface{}{
		"timestamp": firestore.ServerTimestamp,
		"sport":     s.sport.Key,
		"test":      true,
	}); err != nil {
		return fmt.Errorf("firestore health check failed: %w", err)
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("firestore health check cleanup failed: %w", err)
	}
	return nil
}

// Close closes the Firestore client
func (s *FirestoreStore) Close() error {
	if err := s.Client.Close(); err != nil {
		return fmt.Errorf("failed to close firestore client: %w", err)
	}
	log.Info().Msg("Firestore client closed")
	return nil
}

// gameDocument builds the stored fields of a game
func gameDocument(g *models.Game, sport config.Sport) map[string]interface{} {
	doc := map[string]interface{}{
		"gameIdentifier": g.GameIdentifier,
		"Team1Name":      g.Team1Name,
		"Team2Name":      g.Team2Name,
		"ScoreTeam1":     g.Team1Score,
		"ScoreTeam2":     g.Team2Score,
		"GameState":      g.GameState,
		"Round":          g.Round,
		"DatePlayed":     g.DatePlayed,
		"Location":       g.Location,
		"LastUpdated":    firestore.ServerTimestamp,
	}
	if sport.ExtendedFields {
		doc["sport"] = sport.Key
		doc["inning"] = g.Inning
		doc["isElimination"] = g.IsElimination
	}
	return doc
}

// teamDocument builds the stored fields of a team
func teamDocument(t *models.Team, sport config.Sport) map[string]interface{} {
	var seed interface{}
	if t.Seed != nil {
		seed = *t.Seed
	}
	doc := map[string]interface{}{
		"TeamName":    t.TeamName,
		"CoachName":   t.CoachName,
		"Conference":  t.Conference,
		"Wins":        t.Wins,
		"Losses":      t.Losses,
		"Seed":        seed,
		"LastUpdated": firestore.ServerTimestamp,
	}
	if sport.ExtendedFields {
		doc["sport"] = sport.Key
		doc["region"] = t.Region
	}
	return doc
}

// first returns the first document of q or ErrNotFound
func first(ctx context.Context, q firestore.Query) (*firestore.DocumentSnapshot, error) {
	iter := q.Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func count(ctx context.Context, q firestore.Query) (int64, error) {
	res, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, err
	}
	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count result %T", res["all"])
	}
	return v.GetIntegerValue(), nil
}

type firestoreGames struct {
	col   *firestore.CollectionRef
	sport config.Sport
}

func (f firestoreGames) FindByIdentifier(ctx context.Context, identifier string) (game *models.Game, err error) {
	defer observe("find", f.col.ID, time.Now(), &err)

	doc, err := first(ctx, f.col.Where("gameIdentifier", "==", identifier))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("game %s: %w", identifier, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query game: %w", err)
	}

	var g models.Game
	if err := doc.DataTo(&g); err != nil {
		return nil, fmt.Errorf("failed to decode game %s: %w", doc.Ref.ID, err)
	}
	g.ID = doc.Ref.ID
	return &g, nil
}

func (f firestoreGames) Create(ctx context.Context, game *models.Game) (err error) {
	defer observe("create", f.col.ID, time.Now(), &err)

	ref, wr, err := f.col.Add(ctx, gameDocument(game, f.sport))
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	game.ID = ref.ID
	game.LastUpdated = wr.UpdateTime

	log.Debug().
		Str("id", game.ID).
		Str("game", game.GameIdentifier).
		Msg("Game created")
	return nil
}

func (f firestoreGames) Update(ctx context.Context, game *models.Game) (err error) {
	defer observe("update", f.col.ID, time.Now(), &err)

	wr, err := f.col.Doc(game.ID).Set(ctx, gameDocument(game, f.sport), firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update game %s: %w", game.ID, err)
	}
	game.LastUpdated = wr.UpdateTime

	log.Debug().
		Str("id", game.ID).
		Str("game", game.GameIdentifier).
		Int("team1_score", game.Team1Score).
		Int("team2_score", game.Team2Score).
		Msg("Game updated")
	return nil
}

func (f firestoreGames) AnyInState(ctx context.Context, state string) (found bool, err error) {
	defer observe("exists_state", f.col.ID, time.Now(), &err)

	_, err = first(ctx, f.col.Where("GameState", "==", state))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query games by state: %w", err)
	}
	return true, nil
}

func (f firestoreGames) AnyStartingBetween(ctx context.Context, from, to time.Time) (found bool, err error) {
	defer observe("exists_window", f.col.ID, time.Now(), &err)

	q := f.col.Where("DatePlayed", ">", from).Where("DatePlayed", "<", to)
	_, err = first(ctx, q)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query upcoming games: %w", err)
	}
	return true, nil
}

func (f firestoreGames) CountInState(ctx context.Context, state string) (int64, error) {
	n, err := count(ctx, f.col.Where("GameState", "==", state))
	if err != nil {
		return 0, fmt.Errorf("failed to count games by state: %w", err)
	}
	return n, nil
}

func (f firestoreGames) Count(ctx context.Context) (int64, error) {
	n, err := count(ctx, f.col.Query)
	if err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return n, nil
}

type firestoreTeams struct {
	col   *firestore.CollectionRef
	sport config.Sport
}

func (f firestoreTeams) FindByName(ctx context.Context, name string) (team *models.Team, err error) {
	defer observe("find", f.col.ID, time.Now(), &err)

	doc, err := first(ctx, f.col.Where("TeamName", "==", name))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("team %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query team: %w", err)
	}

	var t models.Team
	if err := doc.DataTo(&t); err != nil {
		return nil, fmt.Errorf("failed to decode team %s: %w", doc.Ref.ID, err)
	}
	t.ID = doc.Ref.ID
	return &t, nil
}

func (f firestoreTeams) Create(ctx context.Context, team *models.Team) (err error) {
	defer observe("create", f.col.ID, time.Now(), &err)

	ref, wr, err := f.col.Add(ctx, teamDocument(team, f.sport))
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	team.ID = ref.ID
	team.LastUpdated = wr.UpdateTime

	log.Debug().
		Str("id", team.ID).
		Str("team", team.TeamName).
		Msg("Team created")
	return nil
}

func (f firestoreTeams) Count(ctx context.Context) (int64, error) {
	n, err := count(ctx, f.col.Query)
	if err != nil {
		return 0, fmt.Errorf("failed to count teams: %w", err)
	}
	return n, nil
}

type firestoreLogs struct {
	col *firestore.CollectionRef
}

func (f firestoreLogs) Append(ctx context.Context, entry *models.FetchLog) (err error) {
	defer observe("append", f.col.ID, time.Now(), &err)

	doc := map[string]interface{}{
		"runId":      entry.RunID,
		"sport":      entry.Sport,
		"duration":   entry.DurationMS,
		"fetchCount": entry.FetchCount,
		"timestamp":  firestore.ServerTimestamp,
	}
	if entry.Results != nil {
		doc["results"] = entry.Results
	} else if entry.Error != "" {
		doc["results"] = map[string]interface{}{"error": entry.Error}
	}
	if entry.Error != "" {
		doc["error"] = entry.Error
	}
	if entry.LastFetchTime != nil {
		doc["lastFetchTime"] = *entry.LastFetchTime
	} else {
		doc["lastFetchTime"] = nil
	}
	if entry.Type != "" {
		doc["type"] = entry.Type
		doc["status"] = entry.Status
		doc["message"] = entry.Message
	}

	ref, wr, err := f.col.Add(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to append fetch log: %w", err)
	}
	entry.ID = ref.ID
	entry.Timestamp = wr.UpdateTime
	return nil
}

type firestoreSetupLogs struct {
	col *firestore.CollectionRef
}

func (f firestoreSetupLogs) Append(ctx context.Context, entry *models.SetupLog) (err error) {
	defer observe("append", f.col.ID, time.Now(), &err)

	doc := map[string]interface{}{
		"type":            entry.Type,
		"sport":           entry.Sport,
		"tournamentStart": entry.TournamentStart,
		"collections":     entry.Collections,
		"checks":          entry.Checks,
		"ready":           entry.Ready,
		"setupTime":       entry.SetupTimeMS,
		"nextSteps":       entry.NextSteps,
		"timestamp":       firestore.ServerTimestamp,
	}
	if entry.Seeded != nil {
		doc["seeded"] = entry.Seeded
	}

	ref, wr, err := f.col.Add(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to append setup log: %w", err)
	}
	entry.ID = ref.ID
	entry.Timestamp = wr.UpdateTime
	return nil
}
