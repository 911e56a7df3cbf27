package repository

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Init(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "bounties.db")})
	require.NoError(t, err)
	return db
}

func seedBounty(t *testing.T, db *gorm.DB, sbid int64, current bool) *model.Bounty {
	t.Helper()
	b := &model.Bounty{
		Web3Type:           model.Web3TypeBountiesNetwork,
		Network:            "rinkeby",
		StandardBountiesId: sbid,
		CurrentBounty:      current,
		GithubURL:          "https://github.com/gitcoinco/web/issues/1",
		ProjectType:        model.ProjectTypeTraditional,
		PermissionType:     model.PermissionTypePermissionless,
		BountyState:        model.StateOpen,
		IsOpen:             true,
		Web3Created:        time.Now(),
		ExpiresDate:        time.Now().Add(time.Hour),
	}
	require.NoError(t, NewBountyRepository(db).Create(context.Background(), b))
	return b
}

func TestOnlyOneCurrentRevision(t *testing.T) {
	db := openDB(t)
	seedBounty(t, db, 7, true)
	seedBounty(t, db, 7, false)

	dup := &model.Bounty{Network: "rinkeby", StandardBountiesId: 7, CurrentBounty: true}
	assert.Error(t, NewBountyRepository(db).Create(context.Background(), dup))
}

func TestSaveDetectsStaleRevision(t *testing.T) {
	db := openDB(t)
	repo := NewBountyRepository(db)
	ctx := context.Background()
	b := seedBounty(t, db, 3, true)

	first, err := repo.Get(ctx, b.Id)
	require.NoError(t, err)
	second, err := repo.Get(ctx, b.Id)
	require.NoError(t, err)

	first.Title = "first"
	require.NoError(t, repo.Save(ctx, first))

	second.Title = "second"
	assert.ErrorIs(t, repo.Save(ctx, second), ErrStaleRevision)

	stored, err := repo.Get(ctx, b.Id)
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Title)
	assert.Equal(t, int64(1), stored.Version)
}

func TestRetireAndFindCurrent(t *testing.T) {
	db := openDB(t)
	repo := NewBountyRepository(db)
	ctx := context.Background()
	seedBounty(t, db, 11, true)

	require.NoError(t, repo.RetireCurrent(ctx, "rinkeby", 11))
	_, err := repo.FindCurrent(ctx, "rinkeby", 11)
	assert.ErrorIs(t, err, ErrNotFound)

	next := seedBounty(t, db, 11, true)
	found, err := repo.FindCurrent(ctx, "rinkeby", 11)
	require.NoError(t, err)
	assert.Equal(t, next.Id, found.Id)

	history, err := repo.History(ctx, "rinkeby", 11)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	max, err := repo.MaxStandardBountiesID(ctx, "rinkeby")
	require.NoError(t, err)
	assert.Equal(t, int64(11), max)
}

func TestInterestLinksAreUniquePerProfile(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	b := seedBounty(t, db, 1, true)
	p, err := NewProfileRepository(db).Ensure(ctx, "@Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Handle)

	interests := NewInterestRepository(db)
	require.NoError(t, interests.Create(ctx, b.Id, &model.Interest{ProfileId: p.Id}))

	err = db.Transaction(func(tx *gorm.DB) error {
		return interests.WithTx(tx).Create(ctx, b.Id, &model.Interest{ProfileId: p.Id})
	})
	assert.ErrorIs(t, err, ErrDuplicateInterest)

	n, err := interests.Count(ctx, b.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	active, err := interests.HasActive(ctx, b.Id)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestActiveBountyCount(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	p, err := NewProfileRepository(db).Ensure(ctx, "bob")
	require.NoError(t, err)
	interests := NewInterestRepository(db)

	started := seedBounty(t, db, 1, true)
	require.NoError(t, NewBountyRepository(db).UpdateFields(ctx, started.Id, map[string]interface{}{"bounty_state": model.StateWorkStarted}))
	open := seedBounty(t, db, 2, true)

	require.NoError(t, interests.Create(ctx, started.Id, &model.Interest{ProfileId: p.Id}))
	require.NoError(t, interests.Create(ctx, open.Id, &model.Interest{ProfileId: p.Id}))

	n, err := interests.ActiveBountyCount(ctx, p.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestListFilters(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	repo := NewBountyRepository(db)
	a := seedBounty(t, db, 1, true)
	b := seedBounty(t, db, 2, true)
	seedBounty(t, db, 3, false)
	require.NoError(t, repo.UpdateFields(ctx, b.Id, map[string]interface{}{
		"experience_level": "Advanced", "admin_override_and_hide": false,
	}))

	all, total, err := repo.List(ctx, ListFilter{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	adv, _, err := repo.List(ctx, ListFilter{ExperienceLevel: "adv"}, time.Now())
	require.NoError(t, err)
	require.Len(t, adv, 1)
	assert.Equal(t, b.Id, adv[0].Id)

	after, _, err := repo.List(ctx, ListFilter{PkGt: a.Id, OrderBy: "-id"}, time.Now())
	require.NoError(t, err)
	require.Len(t, after, 1)

	open := true
	opened, _, err := repo.List(ctx, ListFilter{IsOpen: &open}, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestSemaphoreIsExclusive(t *testing.T) {
	db := openDB(t)
	sem := NewSemaphore(db)
	ctx := context.Background()
	ns := BountyLockNamespace(42, "reconcile")
	assert.Equal(t, "bounty_42_reconcile", ns)

	release, ok, err := sem.TryAcquire(ctx, ns, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = sem.TryAcquire(ctx, ns, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	short, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	_, err = sem.Acquire(short, ns, time.Minute)
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	release2, err := sem.Acquire(ctx, ns, time.Minute)
	require.NoError(t, err)
	release2()
}

func TestSemaphoreReapsExpiredHolder(t *testing.T) {
	db := openDB(t)
	sem := NewSemaphore(db)
	ctx := context.Background()

	_, ok, err := sem.TryAcquire(ctx, "bounty_1_x", -time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = sem.TryAcquire(ctx, "bounty_1_x", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSemaphoreReleaseFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger.SetDefaultLogger(logger.NewWriter(logger.INFO, &buf))
	t.Cleanup(func() { logger.SetDefaultLogger(logger.NewWriter(logger.INFO, os.Stdout)) })

	db := openDB(t)
	sem := NewSemaphore(db)
	release, ok, err := sem.TryAcquire(context.Background(), "bounty_3_x", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	release()
	logger.Sync()
	assert.Contains(t, buf.String(), "Failed to release semaphore bounty_3_x")
}

func TestSemaphoreSerializesWorkers(t *testing.T) {
	db := openDB(t)
	sem := NewSemaphore(db)
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := sem.Acquire(ctx, "bounty_9_sync", time.Minute)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
}

func TestSyncRequestQueue(t *testing.T) {
	db := openDB(t)
	q := NewSyncRequestRepository(db)
	ctx := context.Background()

	added, err := q.Enqueue(ctx, &model.BountySyncRequest{Network: "rinkeby", StandardBountiesId: 5})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = q.Enqueue(ctx, &model.BountySyncRequest{Network: "rinkeby", StandardBountiesId: 5})
	require.NoError(t, err)
	assert.False(t, added)

	pending, err := q.Unprocessed(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, q.MarkRetry(ctx, pending[0].Id, "ipfs down"))
	require.NoError(t, q.MarkProcessed(ctx, pending[0].Id, ""))
	pending, err = q.Unprocessed(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
