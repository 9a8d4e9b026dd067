package store

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lucasfdcampos/lead-scraper/internal/domain"
)

const (
	tasksCollection     = "tasks"
	taskLeadsCollection = "task_leads"

	historyDays = 7
)

func (c *Client) ensureTaskIndices(ctx context.Context) error {
	if _, err := c.mdb.Collection(tasksCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}); err != nil {
		return eris.Wrap(err, "store: task indices")
	}
	if _, err := c.mdb.Collection(taskLeadsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "task_id", Value: 1},
			{Key: "name", Value: 1},
			{Key: "phone", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return eris.Wrap(err, "store: task lead indices")
	}
	return nil
}

// ─── Tasks ────────────────────────────────────────────────────────────────────

// CreateTask inserts t as pending and returns its id.
func (c *Client) CreateTask(ctx context.Context, t *domain.Task) (string, error) {
	now := time.Now().UTC()
	t.ID = ""
	t.Status = domain.TaskPending
	t.CreatedAt = now
	t.UpdatedAt = now

	res, err := c.mdb.Collection(tasksCollection).InsertOne(ctx, t)
	if err != nil {
		return "", eris.Wrap(err, "store: create task")
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		t.ID = oid.Hex()
	}
	return t.ID, nil
}

// GetTask returns the task with id, or nil, nil when there is none.
func (c *Client) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var t domain.Task
	err = c.mdb.Collection(tasksCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&t)
	if eris.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get task")
	}
	return &t, nil
}

// ListTasks returns the latest tasks, newest first. An empty status lists
// every task.
func (c *Client) ListTasks(ctx context.Context, status string, limit int64) ([]domain.Task, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return c.findTasks(ctx, filter, -1, limit)
}

// PendingTasks returns up to limit pending tasks in queue order.
func (c *Client) PendingTasks(ctx context.Context, limit int64) ([]domain.Task, error) {
	return c.findTasks(ctx, bson.M{"status": domain.TaskPending}, 1, limit)
}

func (c *Client) findTasks(ctx context.Context, filter bson.M, order int, limit int64) ([]domain.Task, error) {
	cursor, err := c.mdb.Collection(tasksCollection).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: order}}).SetLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "store: find tasks")
	}
	defer cursor.Close(ctx)

	out := []domain.Task{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, eris.Wrap(err, "store: decode tasks")
	}
	return out, nil
}

// ClaimTask moves a pending task to running and resets its progress. It
// reports false when the task was not pending, e.g. another worker took it.
func (c *Client) ClaimTask(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, eris.Wrapf(err, "store: task id %q", id)
	}
	res, err := c.mdb.Collection(tasksCollection).UpdateOne(ctx,
		bson.M{"_id": oid, "status": domain.TaskPending},
		bson.M{
			"$set": bson.M{
				"status":      domain.TaskRunning,
				"leads_count": 0,
				"cycles":      0,
				"updated_at":  time.Now().UTC(),
			},
			"$unset": bson.M{"review_reason": "", "finished_at": ""},
		})
	if err != nil {
		return false, eris.Wrap(err, "store: claim task")
	}
	return res.ModifiedCount == 1, nil
}

// UpdateTask applies u to the task and reports whether it exists.
func (c *Client) UpdateTask(ctx context.Context, id string, u domain.TaskUpdate) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	res, err := c.mdb.Collection(tasksCollection).UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": taskUpdateDoc(u, time.Now().UTC())})
	if err != nil {
		return false, eris.Wrap(err, "store: update task")
	}
	return res.MatchedCount == 1, nil
}

// MarkTasksExported flags the tasks as exported.
func (c *Client) MarkTasksExported(ctx context.Context, ids []string) error {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil
	}
	_, err := c.mdb.Collection(tasksCollection).UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": oids}},
		bson.M{"$set": bson.M{"exported": true, "updated_at": time.Now().UTC()}})
	return eris.Wrap(err, "store: mark exported")
}

func taskUpdateDoc(u domain.TaskUpdate, now time.Time) bson.M {
	doc := bson.M{"updated_at": now}
	if u.Status != nil {
		doc["status"] = *u.Status
	}
	if u.LeadsCount != nil {
		doc["leads_count"] = *u.LeadsCount
	}
	if u.Cycles != nil {
		doc["cycles"] = *u.Cycles
	}
	if u.ReviewReason != nil {
		doc["review_reason"] = *u.ReviewReason
	}
	if u.Exported != nil {
		doc["exported"] = *u.Exported
	}
	if u.Finished {
		doc["finished_at"] = now
	}
	return doc
}

// ─── Task leads ───────────────────────────────────────────────────────────────

type taskLeadDoc struct {
	TaskID    string      `bson:"task_id"`
	Name      string      `bson:"name"`
	Phone     string      `bson:"phone"`
	Lead      domain.Lead `bson:"lead"`
	CreatedAt time.Time   `bson:"created_at"`
}

// SaveTaskLeads links leads to a task, keyed on (task, name, phone), and
// returns how many were new to the task.
func (c *Client) SaveTaskLeads(ctx context.Context, taskID string, leads []domain.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(leads))
	for _, l := range leads {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"task_id": taskID, "name": l.Name, "phone": l.Phone}).
			SetUpdate(bson.M{"$setOnInsert": taskLeadDoc{
				TaskID:    taskID,
				Name:      l.Name,
				Phone:     l.Phone,
				Lead:      l,
				CreatedAt: now,
			}}).
			SetUpsert(true))
	}
	res, err := c.mdb.Collection(taskLeadsCollection).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, eris.Wrap(err, "store: save task leads")
	}
	return int(res.UpsertedCount), nil
}

// TaskLeads returns the leads of the given tasks, newest first.
func (c *Client) TaskLeads(ctx context.Context, taskIDs []string) ([]domain.Lead, error) {
	cursor, err := c.mdb.Collection(taskLeadsCollection).Find(ctx,
		bson.M{"task_id": bson.M{"$in": taskIDs}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: find task leads")
	}
	defer cursor.Close(ctx)

	leads := []domain.Lead{}
	for cursor.Next(ctx) {
		var doc taskLeadDoc
		if err := cursor.Decode(&doc); err == nil {
			leads = append(leads, doc.Lead)
		}
	}
	return leads, eris.Wrap(cursor.Err(), "store: task leads cursor")
}

// ─── Stats ────────────────────────────────────────────────────────────────────

type windows struct {
	today, week, month, history time.Time
}

// statsWindows returns the starts of today, the current week (Monday), the
// current month and the daily history window, in now's location.
func statsWindows(now time.Time) windows {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	offset := (int(today.Weekday()) + 6) % 7
	return windows{
		today:   today,
		week:    today.AddDate(0, 0, -offset),
		month:   time.Date(y, m, 1, 0, 0, 0, 0, now.Location()),
		history: today.AddDate(0, 0, -historyDays),
	}
}

type historyRow struct {
	ID struct {
		Date   string `bson:"date"`
		Source string `bson:"source"`
	} `bson:"_id"`
	N int `bson:"n"`
}

// dailyHistory folds (date, source) counts into one entry per date, oldest
// first.
func dailyHistory(rows []historyRow) []domain.DailyCount {
	byDate := map[string]map[string]int{}
	for _, r := range rows {
		if byDate[r.ID.Date] == nil {
			byDate[r.ID.Date] = map[string]int{}
		}
		byDate[r.ID.Date][r.ID.Source] += r.N
	}
	out := make([]domain.DailyCount, 0, len(byDate))
	for date, sources := range byDate {
		out = append(out, domain.DailyCount{Date: date, Sources: sources})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Stats aggregates task totals and new-lead counts as of now.
func (c *Client) Stats(ctx context.Context, now time.Time) (*domain.Stats, error) {
	w := statsWindows(now)
	stats := &domain.Stats{}

	cursor, err := c.mdb.Collection(tasksCollection).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "running", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$status", domain.TaskRunning}}}, 1, 0,
			}}}}}},
			{Key: "leads", Value: bson.D{{Key: "$sum", Value: "$leads_count"}}},
		}}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "store: task totals")
	}
	var totals []struct {
		Total   int `bson:"total"`
		Running int `bson:"running"`
		Leads   int `bson:"leads"`
	}
	if err := cursor.All(ctx, &totals); err != nil {
		return nil, eris.Wrap(err, "store: decode task totals")
	}
	if len(totals) > 0 {
		stats.TotalTasks = totals[0].Total
		stats.RunningTasks = totals[0].Running
		stats.TotalLeads = totals[0].Leads
	}

	lc := c.mdb.Collection(leadsCollection)
	for _, win := range []struct {
		since time.Time
		dst   *int
	}{
		{w.today, &stats.LeadsToday},
		{w.week, &stats.LeadsWeek},
		{w.month, &stats.LeadsMonth},
	} {
		n, err := lc.CountDocuments(ctx, bson.M{"first_seen_at": bson.M{"$gte": win.since}})
		if err != nil {
			return nil, eris.Wrap(err, "store: count leads")
		}
		*win.dst = int(n)
	}

	cursor, err = lc.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"first_seen_at": bson.M{"$gte": w.history}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "date", Value: bson.D{{Key: "$dateToString", Value: bson.D{
					{Key: "format", Value: "%Y-%m-%d"},
					{Key: "date", Value: "$first_seen_at"},
				}}}},
				{Key: "source", Value: "$source"},
			}},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "store: lead history")
	}
	var rows []historyRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, eris.Wrap(err, "store: decode lead history")
	}
	stats.DailyHistory = dailyHistory(rows)
	return stats, nil
}
