/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/pulse/pkg/alerts"
	"github.com/carverauto/pulse/pkg/jobs"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

type recordingEnqueuer struct {
	jobs   []jobs.Job
	reject bool
}

func (r *recordingEnqueuer) Enqueue(job jobs.Job) bool {
	if r.reject {
		return false
	}

	r.jobs = append(r.jobs, job)

	return true
}

type harness struct {
	sched    *Scheduler
	sweeper  *MockAlertSweeper
	store    *MockStore
	roller   *MockRoller
	enqueuer *recordingEnqueuer
	now      time.Time
}

func newHarness(t *testing.T, specs Specs) *harness {
	t.Helper()

	ctrl := gomock.NewController(t)

	h := &harness{
		sweeper:  NewMockAlertSweeper(ctrl),
		store:    NewMockStore(ctrl),
		roller:   NewMockRoller(ctrl),
		enqueuer: &recordingEnqueuer{},
		now:      time.Date(2025, 3, 2, 14, 37, 0, 0, time.UTC),
	}

	s, err := New(Config{Specs: specs, RetentionDays: 30}, h.sweeper, h.store, h.roller, h.enqueuer, logger.NewTestLogger())
	require.NoError(t, err)

	s.now = func() time.Time { return h.now }
	h.sched = s

	return h
}

func TestNewRegistersConfiguredSweeps(t *testing.T) {
	h := newHarness(t, Specs{AlertEvaluation: "@every 1m", Retention: "30 3 * * *"})

	entries := h.sched.Entries()
	assert.Len(t, entries, 2)
	assert.Contains(t, entries, "alert_evaluation")
	assert.Contains(t, entries, "retention")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{Specs: Specs{AlertEvaluation: "every minute"}, RetentionDays: 30}, nil, nil, nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alert_evaluation")

	_, err = New(Config{}, nil, nil, nil, nil, nil)
	require.ErrorIs(t, err, errRetentionDays)
}

func TestEvaluateAlerts(t *testing.T) {
	h := newHarness(t, Specs{})

	h.sweeper.EXPECT().EvaluateAll(gomock.Any()).Return(alerts.Summary{Projects: 2, Rules: 5, Fired: 1}, nil)
	require.NoError(t, h.sched.EvaluateAlerts(context.Background()))

	h.sweeper.EXPECT().EvaluateAll(gomock.Any()).Return(alerts.Summary{}, errors.New("db down"))
	require.Error(t, h.sched.EvaluateAlerts(context.Background()))
}

func TestRequeuePending(t *testing.T) {
	h := newHarness(t, Specs{})
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	h.store.EXPECT().
		ListPendingNotifications(gomock.Any(), h.now.Add(-pendingGrace), pendingLimit).
		Return(ids, nil)

	require.NoError(t, h.sched.RequeuePending(context.Background()))

	require.Len(t, h.enqueuer.jobs, 2)
	assert.Equal(t, jobs.TypeSendNotification, h.enqueuer.jobs[0].Type)
	assert.Equal(t, ids[1], h.enqueuer.jobs[1].NotificationID)
}

func TestRollupHours(t *testing.T) {
	h := newHarness(t, Specs{})
	a := &models.Project{ID: uuid.New(), Slug: "a"}
	b := &models.Project{ID: uuid.New(), Slug: "b"}

	from := time.Date(2025, 3, 2, 13, 0, 0, 0, time.UTC)

	h.store.EXPECT().ListProjects(gomock.Any()).Return([]*models.Project{a, b}, nil)
	h.roller.EXPECT().Rollup(gomock.Any(), a.ID, from, h.now, models.GranularityHour).Return(0, errors.New("boom"))
	h.roller.EXPECT().Rollup(gomock.Any(), b.ID, from, h.now, models.GranularityHour).Return(3, nil)

	// One failing project does not stop the others.
	err := h.sched.RollupHours(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project a")
}

func TestRollupDays(t *testing.T) {
	h := newHarness(t, Specs{})
	p := &models.Project{ID: uuid.New(), Slug: "p"}

	h.store.EXPECT().ListProjects(gomock.Any()).Return([]*models.Project{p}, nil)
	h.roller.EXPECT().
		Rollup(gomock.Any(), p.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), h.now, models.GranularityDay).
		Return(1, nil)

	require.NoError(t, h.sched.RollupDays(context.Background()))
}

func TestPrune(t *testing.T) {
	h := newHarness(t, Specs{})
	cutoff := h.now.AddDate(0, 0, -30)

	gomock.InOrder(
		h.store.EXPECT().DeleteTracesBefore(gomock.Any(), cutoff).Return(int64(10), nil),
		h.store.EXPECT().DeleteMetricPointsBefore(gomock.Any(), cutoff).Return(int64(20), nil),
		h.store.EXPECT().DeleteAggregatedMetricsBefore(gomock.Any(), cutoff).Return(int64(5), nil),
	)

	require.NoError(t, h.sched.Prune(context.Background()))
}

func TestPruneStopsOnError(t *testing.T) {
	h := newHarness(t, Specs{})

	h.store.EXPECT().DeleteTracesBefore(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("locked"))

	require.Error(t, h.sched.Prune(context.Background()))
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, Specs{AlertEvaluation: "@every 1h"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- h.sched.Start(ctx) }()

	cancel()
	require.NoError(t, <-done)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()

	require.NoError(t, h.sched.Stop(stopCtx))
}
