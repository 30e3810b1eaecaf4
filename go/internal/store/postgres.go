package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/dmehra21/codebid/go/internal/models"
	"github.com/dmehra21/codebid/go/internal/sqlutil"
)

// Postgres is the durable Store implementation. Queries are written
// against the schema in schema.sql.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) CreateUser(ctx context.Context, user models.User) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO users (id, username, team_name, role, wallet, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Username, user.TeamName, user.Role, user.Wallet, user.IsActive, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (p *Postgres) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, username, team_name, role, wallet, is_active, created_at
		 FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.TeamName, &u.Role, &u.Wallet, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// DebitWallet performs the conditional debit in a single statement so
// competing debits on the same wallet serialize on the row lock and
// the balance can never go negative.
func (p *Postgres) DebitWallet(ctx context.Context, userID uuid.UUID, amount int) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE users SET wallet = wallet - $1 WHERE id = $2 AND wallet >= $1`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("failed to debit wallet: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to debit wallet: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("debit %d from %s: %w", amount, userID, ErrInsufficientFunds)
	}
	return nil
}

func (p *Postgres) ListTeams(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT DISTINCT team_name FROM users
		 WHERE role = 'user' AND team_name <> '' ORDER BY team_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (p *Postgres) DeactivateTeam(ctx context.Context, teamName string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE users SET is_active = FALSE WHERE team_name = $1`, teamName)
	if err != nil {
		return fmt.Errorf("failed to deactivate team %s: %w", teamName, err)
	}
	return nil
}

// CreateQuestion writes the question and its ordered test cases in
// one transaction.
func (p *Postgres) CreateQuestion(ctx context.Context, q models.Question) error {
	return sqlutil.Run(ctx, p.db, newTxQueries, func(tx *txQueries) error {
		_, err := tx.tx.ExecContext(ctx,
			`INSERT INTO questions (id, title, description, difficulty, starter_code, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			q.ID, q.Title, q.Description, q.Difficulty, q.StarterCode, q.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create question: %w", err)
		}
		for i, tc := range q.TestCases {
			_, err := tx.tx.ExecContext(ctx,
				`INSERT INTO test_cases (question_id, position, input, expected_output)
				 VALUES ($1, $2, $3, $4)`,
				q.ID, i, tc.Input, tc.ExpectedOutput)
			if err != nil {
				return fmt.Errorf("failed to create test case %d: %w", i, err)
			}
		}
		return nil
	})
}

func (p *Postgres) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	var q models.Question
	err := p.db.QueryRowContext(ctx,
		`SELECT id, title, description, difficulty, starter_code, created_at
		 FROM questions WHERE id = $1`, id).
		Scan(&q.ID, &q.Title, &q.Description, &q.Difficulty, &q.StarterCode, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get question %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT input, expected_output FROM test_cases
		 WHERE question_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get test cases: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tc models.TestCase
		if err := rows.Scan(&tc.Input, &tc.ExpectedOutput); err != nil {
			return nil, fmt.Errorf("failed to scan test case: %w", err)
		}
		q.TestCases = append(q.TestCases, tc)
	}
	return &q, rows.Err()
}

func (p *Postgres) CreateAuction(ctx context.Context, a models.Auction) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO auctions (id, question_id, status, bid_amount, bidder_id, bidder_username,
		                       bidder_team, winner_id, winning_amount, start_time, end_time,
		                       timer_duration, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.QuestionID, a.Status, a.CurrentBid.Amount,
		sqlutil.ToNullUUID(a.CurrentBid.BidderID), a.CurrentBid.BidderUsername, a.CurrentBid.BidderTeam,
		sqlutil.ToNullUUID(a.WinnerID), a.WinningAmount,
		sqlutil.ToSqlTime(a.StartTime), sqlutil.ToSqlTime(a.EndTime),
		a.TimerDuration, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

func (p *Postgres) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, question_id, status, bid_amount, bidder_id, bidder_username, bidder_team,
		        winner_id, winning_amount, start_time, end_time, timer_duration, created_at
		 FROM auctions WHERE id = $1`, id)
	a, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get auction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

func (p *Postgres) UpdateAuction(ctx context.Context, a models.Auction) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE auctions SET status = $2, bid_amount = $3, bidder_id = $4, bidder_username = $5,
		        bidder_team = $6, winner_id = $7, winning_amount = $8, start_time = $9, end_time = $10
		 WHERE id = $1`,
		a.ID, a.Status, a.CurrentBid.Amount,
		sqlutil.ToNullUUID(a.CurrentBid.BidderID), a.CurrentBid.BidderUsername, a.CurrentBid.BidderTeam,
		sqlutil.ToNullUUID(a.WinnerID), a.WinningAmount,
		sqlutil.ToSqlTime(a.StartTime), sqlutil.ToSqlTime(a.EndTime))
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}
	return nil
}

func (p *Postgres) CountCompletedAuctions(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM auctions WHERE status = 'completed'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed auctions: %w", err)
	}
	return count, nil
}

func (p *Postgres) CreateBid(ctx context.Context, b models.Bid) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO bids (id, auction_id, bidder_id, bidder_username, bidder_team, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.AuctionID, b.BidderID, b.BidderUsername, b.BidderTeam, b.Amount, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bid: %w", err)
	}
	return nil
}

func (p *Postgres) ListBidsByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, auction_id, bidder_id, bidder_username, bidder_team, amount, created_at
		 FROM bids WHERE auction_id = $1 ORDER BY created_at`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		var b models.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.BidderUsername,
			&b.BidderTeam, &b.Amount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func (p *Postgres) CreateAllotment(ctx context.Context, a models.Allotment) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO allotments (id, user_id, username, team_name, question_id, auction_id,
		        bid_amount, submitted_code, test_cases_passed, total_test_cases, score, status,
		        allotted_at, submitted_at, evaluated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		a.ID, a.UserID, a.Username, a.TeamName, a.QuestionID, a.AuctionID,
		a.BidAmount, a.SubmittedCode, a.TestCasesPassed, a.TotalTestCases, a.Score, a.Status,
		a.AllottedAt, sqlutil.ToSqlTime(a.SubmittedAt), sqlutil.ToSqlTime(a.EvaluatedAt))
	if err != nil {
		return fmt.Errorf("failed to create allotment: %w", err)
	}
	return nil
}

func (p *Postgres) GetAllotment(ctx context.Context, id uuid.UUID) (*models.Allotment, error) {
	row := p.db.QueryRowContext(ctx, allotmentSelect+` WHERE id = $1`, id)
	a, err := scanAllotment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get allotment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get allotment: %w", err)
	}
	return a, nil
}

func (p *Postgres) UpdateAllotment(ctx context.Context, a models.Allotment) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE allotments SET submitted_code = $2, test_cases_passed = $3, total_test_cases = $4,
		        score = $5, status = $6, submitted_at = $7, evaluated_at = $8
		 WHERE id = $1`,
		a.ID, a.SubmittedCode, a.TestCasesPassed, a.TotalTestCases,
		a.Score, a.Status, sqlutil.ToSqlTime(a.SubmittedAt), sqlutil.ToSqlTime(a.EvaluatedAt))
	if err != nil {
		return fmt.Errorf("failed to update allotment: %w", err)
	}
	return nil
}

func (p *Postgres) ListAllotmentsByStatus(ctx context.Context, status models.AllotmentStatus) ([]models.Allotment, error) {
	rows, err := p.db.QueryContext(ctx,
		allotmentSelect+` WHERE status = $1 ORDER BY allotted_at, id`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list allotments: %w", err)
	}
	return collectAllotments(rows)
}

func (p *Postgres) ListAllotmentsByUsers(ctx context.Context, userIDs []uuid.UUID, status models.AllotmentStatus) ([]models.Allotment, error) {
	rows, err := p.db.QueryContext(ctx,
		allotmentSelect+` WHERE user_id = ANY($1) AND status = $2 ORDER BY allotted_at, id`,
		pq.Array(userIDs), status)
	if err != nil {
		return nil, fmt.Errorf("failed to list allotments by users: %w", err)
	}
	return collectAllotments(rows)
}

func (p *Postgres) ListEvaluatedAllotmentsByUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.Allotment, error) {
	return p.ListAllotmentsByUsers(ctx, userIDs, models.AllotmentStatusEvaluated)
}

func (p *Postgres) CountAllotmentsByTeam(ctx context.Context, teamName string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM allotments WHERE team_name = $1`, teamName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count allotments for team %s: %w", teamName, err)
	}
	return count, nil
}

func (p *Postgres) CreateSession(ctx context.Context, s models.ScheduledSession) error {
	joined, results, err := marshalSessionJSON(s)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO scheduled_sessions (id, title, description, scheduled_time, question_ids,
		        min_users, max_users, auction_duration, coding_duration, status, joined_users,
		        current_question_index, started_at, completed_at, results, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		s.ID, s.Title, s.Description, s.ScheduledTime, pq.Array(uuidStrings(s.QuestionIDs)),
		s.MinUsers, s.MaxUsers, s.AuctionDuration, s.CodingDuration, s.Status, joined,
		s.CurrentQuestionIndex, sqlutil.ToSqlTime(s.StartedAt), sqlutil.ToSqlTime(s.CompletedAt),
		results, s.CreatedBy, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (p *Postgres) GetSession(ctx context.Context, id uuid.UUID) (*models.ScheduledSession, error) {
	row := p.db.QueryRowContext(ctx, sessionSelect+` WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (p *Postgres) UpdateSession(ctx context.Context, s models.ScheduledSession) error {
	joined, results, err := marshalSessionJSON(s)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`UPDATE scheduled_sessions SET status = $2, joined_users = $3, current_question_index = $4,
		        started_at = $5, completed_at = $6, results = $7
		 WHERE id = $1`,
		s.ID, s.Status, joined, s.CurrentQuestionIndex,
		sqlutil.ToSqlTime(s.StartedAt), sqlutil.ToSqlTime(s.CompletedAt), results)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (p *Postgres) ListDueSessions(ctx context.Context, now time.Time) ([]models.ScheduledSession, error) {
	rows, err := p.db.QueryContext(ctx,
		sessionSelect+` WHERE status = 'scheduled' AND scheduled_time <= $1 ORDER BY scheduled_time`,
		now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ScheduledSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

const allotmentSelect = `SELECT id, user_id, username, team_name, question_id, auction_id,
	bid_amount, submitted_code, test_cases_passed, total_test_cases, score, status,
	allotted_at, submitted_at, evaluated_at FROM allotments`

const sessionSelect = `SELECT id, title, description, scheduled_time, question_ids, min_users,
	max_users, auction_duration, coding_duration, status, joined_users, current_question_index,
	started_at, completed_at, results, created_by, created_at FROM scheduled_sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*models.Auction, error) {
	var a models.Auction
	var bidderID, winnerID uuid.NullUUID
	var bidderUsername, bidderTeam sql.NullString
	var startTime, endTime sql.NullTime
	err := row.Scan(&a.ID, &a.QuestionID, &a.Status, &a.CurrentBid.Amount,
		&bidderID, &bidderUsername, &bidderTeam,
		&winnerID, &a.WinningAmount, &startTime, &endTime, &a.TimerDuration, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.CurrentBid.BidderID = sqlutil.FromNullUUID(bidderID)
	a.CurrentBid.BidderUsername = sqlutil.FromSqlString(bidderUsername, "")
	a.CurrentBid.BidderTeam = sqlutil.FromSqlString(bidderTeam, "")
	a.WinnerID = sqlutil.FromNullUUID(winnerID)
	a.StartTime = sqlutil.FromSqlTime(startTime)
	a.EndTime = sqlutil.FromSqlTime(endTime)
	return &a, nil
}

func scanAllotment(row rowScanner) (*models.Allotment, error) {
	var a models.Allotment
	var submittedAt, evaluatedAt sql.NullTime
	err := row.Scan(&a.ID, &a.UserID, &a.Username, &a.TeamName, &a.QuestionID, &a.AuctionID,
		&a.BidAmount, &a.SubmittedCode, &a.TestCasesPassed, &a.TotalTestCases, &a.Score, &a.Status,
		&a.AllottedAt, &submittedAt, &evaluatedAt)
	if err != nil {
		return nil, err
	}
	a.SubmittedAt = sqlutil.FromSqlTime(submittedAt)
	a.EvaluatedAt = sqlutil.FromSqlTime(evaluatedAt)
	return &a, nil
}

func collectAllotments(rows *sql.Rows) ([]models.Allotment, error) {
	defer rows.Close()
	var out []models.Allotment
	for rows.Next() {
		a, err := scanAllotment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allotment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanSession(row rowScanner) (*models.ScheduledSession, error) {
	var s models.ScheduledSession
	var questionIDs pq.StringArray
	var joined, results []byte
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.ScheduledTime, &questionIDs,
		&s.MinUsers, &s.MaxUsers, &s.AuctionDuration, &s.CodingDuration, &s.Status, &joined,
		&s.CurrentQuestionIndex, &startedAt, &completedAt, &results, &s.CreatedBy, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	for _, idStr := range questionIDs {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse question id %q: %w", idStr, err)
		}
		s.QuestionIDs = append(s.QuestionIDs, id)
	}
	if len(joined) > 0 {
		if err := json.Unmarshal(joined, &s.JoinedUsers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal joined users: %w", err)
		}
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &s.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal results: %w", err)
		}
	}
	s.StartedAt = sqlutil.FromSqlTime(startedAt)
	s.CompletedAt = sqlutil.FromSqlTime(completedAt)
	return &s, nil
}

func marshalSessionJSON(s models.ScheduledSession) (joined, results []byte, err error) {
	joined, err = json.Marshal(s.JoinedUsers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal joined users: %w", err)
	}
	results, err = json.Marshal(s.Results)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	return joined, results, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// txQueries binds statements to one transaction for sqlutil.Run.
type txQueries struct {
	tx *sql.Tx
}

func newTxQueries(tx *sql.Tx) *txQueries {
	return &txQueries{tx: tx}
}
