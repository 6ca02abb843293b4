package reminderService

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"PersonalAssistant/database"
	"PersonalAssistant/database/sqlite"
	"PersonalAssistant/internal/api/reminder"
	reminderRepository "PersonalAssistant/internal/api/reminder/repository"
	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
	"PersonalAssistant/pkg/utils"

	"github.com/sirupsen/logrus"
)

type fakeCenter struct {
	mu        sync.Mutex
	seq       int
	pending   map[string]entity.NotificationRequest
	cancelled []string
	err       error
}

func newFakeCenter() *fakeCenter {
	return &fakeCenter{pending: make(map[string]entity.NotificationRequest)}
}

func (c *fakeCenter) Schedule(ctx context.Context, req entity.NotificationRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.seq++
	id := fmt.Sprintf("n-%d", c.seq)
	c.pending[id] = req
	return id, nil
}

func (c *fakeCenter) Cancel(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; !ok {
		return errors.New("unknown notification")
	}
	delete(c.pending, id)
	c.cancelled = append(c.cancelled, id)
	return nil
}

func (c *fakeCenter) active() []entity.NotificationRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entity.NotificationRequest, 0, len(c.pending))
	for _, req := range c.pending {
		out = append(out, req)
	}
	return out
}

type sink struct {
	mu     sync.Mutex
	events []voice.Event
}

func (s *sink) Publish(evt voice.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

type harness struct {
	svc    *reminderService
	center *fakeCenter
	repo   reminderRepository.Repository
	events *sink
}

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := DefaultReminderConfig()
	cfg.Location = time.UTC

	h := &harness{
		center: newFakeCenter(),
		repo:   reminderRepository.New(db, log),
		events: &sink{},
	}
	h.svc = NewReminderService(log, h.repo, h.center, nil, nil, utils.New(), h.events, cfg).(*reminderService)
	h.svc.now = func() time.Time { return fixedNow }
	return h
}

func (h *harness) instructions(t *testing.T) []entity.ReminderInstruction {
	t.Helper()
	client, err := h.repo.NewClient(false)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	list, err := client.Instructions.ListInstructions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return list
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func TestIsQuietHoursSpanningMidnight(t *testing.T) {
	t.Parallel()

	window := QuietHours{Start: 22, End: 7}
	cases := []struct {
		at   time.Time
		want bool
	}{
		{at(23, 30), true},
		{at(5, 0), true},
		{at(12, 0), false},
		{at(21, 59), false},
		{at(22, 0), true},
		{at(7, 0), false},
	}
	for _, tc := range cases {
		if got := IsQuietHours(tc.at, window); got != tc.want {
			t.Errorf("IsQuietHours(%s) = %v, want %v", tc.at.Format("15:04"), got, tc.want)
		}
	}
}

func TestIsQuietHoursSameDayAndEmptyWindow(t *testing.T) {
	t.Parallel()

	if !IsQuietHours(at(13, 0), QuietHours{Start: 12, End: 14}) {
		t.Fatal("13:00 should be inside [12,14)")
	}
	if IsQuietHours(at(14, 0), QuietHours{Start: 12, End: 14}) {
		t.Fatal("14:00 should be outside [12,14)")
	}
	if IsQuietHours(at(3, 0), QuietHours{Start: 5, End: 5}) {
		t.Fatal("empty window is never quiet")
	}
}

func TestCountdown(t *testing.T) {
	t.Parallel()

	due := at(15, 0)
	cases := []struct {
		delivery time.Time
		want     string
	}{
		{due.Add(-30 * time.Minute), "Due in less than 1 hour"},
		{due.Add(-time.Hour), "Due in 1 hour"},
		{due.Add(-5 * time.Hour), "Due in 5 hours"},
		{due.Add(-24 * time.Hour), "Due in 1 day"},
		{due.Add(-72 * time.Hour), "Due in 3 days"},
	}
	for _, tc := range cases {
		if got := Countdown(tc.delivery, due); got != tc.want {
			t.Errorf("Countdown(%s) = %q, want %q", due.Sub(tc.delivery), got, tc.want)
		}
	}
}

func TestScheduleCommittedTask(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	due := at(15, 0)
	task := entity.PersistedTask{ID: "42", Title: "Call Sarah", Priority: entity.PriorityMedium, DueDate: &due}

	if err := h.svc.Schedule(context.Background(), task); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	list := h.instructions(t)
	if len(list) != 1 {
		t.Fatalf("expected exactly one instruction, got %d", len(list))
	}
	want := due.Add(-30 * time.Minute)
	if !list[0].DeliverAt.Equal(want) || list[0].OwnerKey != "task:42" {
		t.Fatalf("unexpected instruction %+v", list[0])
	}

	active := h.center.active()
	if len(active) != 1 {
		t.Fatalf("expected one pending notification, got %d", len(active))
	}
	req := active[0]
	if req.Body != "Due in less than 1 hour" || !strings.HasSuffix(req.Title, ": Call Sarah") {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Suppressible || req.Priority != entity.NotificationPriorityDefault {
		t.Fatalf("unexpected flags %+v", req)
	}
	if len(req.Actions) != 2 {
		t.Fatalf("unexpected actions %+v", req.Actions)
	}
	if req.Data["task_id"] != "42" {
		t.Fatalf("unexpected data %+v", req.Data)
	}
}

func TestScheduleWithoutDueDateIsNoop(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.svc.Schedule(context.Background(), entity.PersistedTask{ID: "1", Title: "Someday"}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	past := fixedNow.Add(-time.Hour)
	if err := h.svc.Schedule(context.Background(), entity.PersistedTask{ID: "2", Title: "Late", DueDate: &past}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if n := len(h.instructions(t)); n != 0 {
		t.Fatalf("expected no instructions, got %d", n)
	}
	if n := len(h.center.active()); n != 0 {
		t.Fatalf("expected no notifications, got %d", n)
	}
}

func TestScheduleInsideLeadTimeDeliversNow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	due := fixedNow.Add(10 * time.Minute)
	task := entity.PersistedTask{ID: "soon", Title: "Stand-up", Priority: entity.PriorityHigh, DueDate: &due}

	if err := h.svc.Schedule(context.Background(), task); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	list := h.instructions(t)
	if len(list) != 1 || !list[0].DeliverAt.Equal(fixedNow) {
		t.Fatalf("expected delivery now, got %+v", list)
	}
}

func TestRescheduleKeepsExactlyOneInstruction(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	due := at(15, 0)
	task := entity.PersistedTask{ID: "7", Title: "Dentist", Priority: entity.PriorityLow, DueDate: &due}

	if err := h.svc.Schedule(ctx, task); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	moved := at(18, 0)
	task.DueDate = &moved
	if err := h.svc.Reschedule(ctx, task); err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	list := h.instructions(t)
	if len(list) != 1 {
		t.Fatalf("expected exactly one instruction, got %d", len(list))
	}
	if !list[0].DeliverAt.Equal(moved.Add(-15 * time.Minute)) {
		t.Fatalf("unexpected delivery %s", list[0].DeliverAt)
	}
	if n := len(h.center.active()); n != 1 {
		t.Fatalf("expected one pending notification, got %d", n)
	}
	if len(h.center.cancelled) != 1 {
		t.Fatalf("expected the old notification to be cancelled, got %v", h.center.cancelled)
	}

	// a second Schedule for the same task also replaces
	if err := h.svc.Schedule(ctx, task); err != nil {
		t.Fatalf("schedule again: %v", err)
	}
	if n := len(h.instructions(t)); n != 1 {
		t.Fatalf("expected exactly one instruction, got %d", n)
	}
}

func TestRescheduleToNoDueDateRemovesInstruction(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	due := at(15, 0)
	task := entity.PersistedTask{ID: "9", Title: "Pay rent", DueDate: &due}

	if err := h.svc.Schedule(ctx, task); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	task.DueDate = nil
	if err := h.svc.Reschedule(ctx, task); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if n := len(h.instructions(t)); n != 0 {
		t.Fatalf("expected no instructions, got %d", n)
	}
	if _, err := h.svc.Instruction(ctx, "9"); !errors.Is(err, reminder.ErrInstructionAbsent) {
		t.Fatalf("expected ErrInstructionAbsent, got %v", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	due := at(15, 0)

	if err := h.svc.Schedule(ctx, entity.PersistedTask{ID: "3", Title: "Report", DueDate: &due}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := h.svc.Cancel(ctx, "3"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := h.svc.Cancel(ctx, "3"); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if n := len(h.center.active()); n != 0 {
		t.Fatalf("expected no pending notifications, got %d", n)
	}
}

func TestQuietHoursMarksSuppressibleUnlessHighPriority(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	due := at(23, 45)

	if err := h.svc.Schedule(ctx, entity.PersistedTask{ID: "low", Title: "Water plants", Priority: entity.PriorityLow, DueDate: &due}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := h.svc.Schedule(ctx, entity.PersistedTask{ID: "high", Title: "Server migration", Priority: entity.PriorityHigh, DueDate: &due}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	client, _ := h.repo.NewClient(false)
	low, err := client.Instructions.GetInstructionByOwner(ctx, "task:low")
	if err != nil || !low.Suppressible {
		t.Fatalf("expected suppressible low priority reminder, got %+v %v", low, err)
	}
	high, err := client.Instructions.GetInstructionByOwner(ctx, "task:high")
	if err != nil || high.Suppressible {
		t.Fatalf("high priority reminder must not be suppressible, got %+v %v", high, err)
	}
	if high.Priority != entity.NotificationPriorityHigh {
		t.Fatalf("unexpected priority %s", high.Priority)
	}
}

func TestCategoryAndActions(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	due := at(15, 0)

	meeting := h.svc.BuildTaskRequest(entity.PersistedTask{ID: "m", Title: "Sync", Category: entity.TaskCategoryMeeting, DueDate: &due}, due.Add(-time.Hour))
	if meeting.CategoryID != entity.NotificationCategoryMeeting || meeting.Actions[0].Title != "Join Now" || meeting.Actions[1].Title != "Snooze 5min" {
		t.Fatalf("unexpected meeting request %+v", meeting)
	}

	classified := h.svc.BuildTaskRequest(entity.PersistedTask{ID: "p", Title: "Pay the electricity bill", DueDate: &due}, due.Add(-2*time.Hour))
	if classified.CategoryID != entity.NotificationCategoryFinancial {
		t.Fatalf("expected financial category from keywords, got %s", classified.CategoryID)
	}
	if classified.Body != "Due in 2 hours" {
		t.Fatalf("unexpected body %q", classified.Body)
	}

	located := h.svc.BuildTaskRequest(entity.PersistedTask{ID: "l", Title: "Pick up parcel", Location: &entity.Location{Name: "Post office"}, DueDate: &due}, due.Add(-30*time.Minute))
	if located.Body != "Due in less than 1 hour at Post office" || located.CategoryID != entity.NotificationCategoryTask {
		t.Fatalf("unexpected located request %+v", located)
	}
	if located.Title != "Task Reminder: Pick up parcel" || located.Actions[0].ID != ActionComplete {
		t.Fatalf("unexpected located request %+v", located)
	}
}

func TestSchedulingFailureIsReported(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.center.err = errors.New("notification service unavailable")
	due := at(15, 0)

	err := h.svc.Schedule(context.Background(), entity.PersistedTask{ID: "x", Title: "Call", DueDate: &due})
	if !errors.Is(err, reminder.ErrScheduling) {
		t.Fatalf("expected ErrScheduling, got %v", err)
	}
	if n := len(h.instructions(t)); n != 0 {
		t.Fatalf("expected no instructions, got %d", n)
	}
}

func TestScheduleRecurringReplacesByKey(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	r := entity.RecurringReminder{
		Key:       "briefing",
		Title:     "Daily briefing",
		Frequency: entity.FrequencyDaily,
		Hour:      8,
	}

	if err := h.svc.ScheduleRecurring(ctx, r); err != nil {
		t.Fatalf("schedule recurring: %v", err)
	}
	r.Hour = 9
	if err := h.svc.ScheduleRecurring(ctx, r); err != nil {
		t.Fatalf("reschedule recurring: %v", err)
	}

	list := h.instructions(t)
	if len(list) != 1 {
		t.Fatalf("expected one recurring instruction, got %d", len(list))
	}
	// 10:00 now, so the next 09:00 is tomorrow
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if list[0].Kind != entity.InstructionKindRecurring || !list[0].DeliverAt.Equal(want) || list[0].Category != entity.NotificationCategoryBriefing {
		t.Fatalf("unexpected instruction %+v", list[0])
	}

	if err := h.svc.CancelRecurring(ctx, "briefing"); err != nil {
		t.Fatalf("cancel recurring: %v", err)
	}
	if n := len(h.instructions(t)); n != 0 {
		t.Fatalf("expected no instructions, got %d", n)
	}
}

func TestScheduleRecurringRejectsInvalid(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	err := h.svc.ScheduleRecurring(context.Background(), entity.RecurringReminder{Key: "k", Title: "t", Frequency: "monthly"})
	if !errors.Is(err, reminder.ErrInvalidRecurring) {
		t.Fatalf("expected ErrInvalidRecurring, got %v", err)
	}
}

func TestNextRecurringWeekly(t *testing.T) {
	t.Parallel()

	// fixedNow is a Sunday
	r := entity.RecurringReminder{Frequency: entity.FrequencyWeekly, Weekday: time.Monday, Hour: 7}
	got := nextRecurring(r, fixedNow)
	want := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	r.Weekday = time.Sunday
	r.Hour = 9
	got = nextRecurring(r, fixedNow)
	want = time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestRestoreRearmsFutureAndDropsMissed(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	client, _ := h.repo.NewClient(false)

	seed := []entity.ReminderInstruction{
		{ID: "1", OwnerKey: "task:future", NotificationID: "old-1", Kind: entity.InstructionKindOneShot, DeliverAt: fixedNow.Add(time.Hour), Title: "a", Category: entity.NotificationCategoryTask},
		{ID: "2", OwnerKey: "task:missed", NotificationID: "old-2", Kind: entity.InstructionKindOneShot, DeliverAt: fixedNow.Add(-time.Hour), Title: "b", Category: entity.NotificationCategoryTask},
		{ID: "3", OwnerKey: "recurring:briefing", NotificationID: "old-3", Kind: entity.InstructionKindRecurring, Frequency: entity.FrequencyDaily, DeliverAt: fixedNow.Add(-49 * time.Hour), Title: "c", Category: entity.NotificationCategoryBriefing},
	}
	for _, in := range seed {
		if err := client.Instructions.CreateInstruction(ctx, in); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	if err := h.svc.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	list := h.instructions(t)
	if len(list) != 2 {
		t.Fatalf("expected two instructions after restore, got %+v", list)
	}
	if n := len(h.center.active()); n != 2 {
		t.Fatalf("expected two pending notifications, got %d", n)
	}
	for _, in := range list {
		if in.NotificationID == "old-1" || in.NotificationID == "old-3" {
			t.Fatalf("notification id not refreshed for %s", in.OwnerKey)
		}
	}
}
