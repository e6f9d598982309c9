package entrycache_test

import (
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coredir/entrycache/lib/entrycache"
)

func addCommitted(t *testing.T, c *entrycache.CacheCore, id entrycache.ID, dn string, closed *int) {
	t.Helper()
	ctx := dlog.NewTestContext(t, false)
	b, err := c.Add(ctx, newTestEntry(id, dn, closed), entrycache.LockWrite)
	require.NoError(t, err)
	b.Commit()
	b.Return(ctx)
}

func TestAddFindRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	c := entrycache.NewCacheCore(0)

	addCommitted(t, c, 1, "cn=alice,dc=example", nil)

	id, ok := c.FindByDN(ctx, []byte("cn=alice,dc=example"))
	require.True(t, ok)
	assert.Equal(t, entrycache.ID(1), id)

	b, ok := c.FindByID(ctx, 1, entrycache.LockRead)
	require.True(t, ok)
	assert.Equal(t, "cn=alice,dc=example", b.Entry().DN())
	b.Return(ctx)
}

func TestAddRejectsDuplicateDN(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	c := entrycache.NewCacheCore(0)

	addCommitted(t, c, 1, "cn=alice,dc=example", nil)

	_, err := c.Add(ctx, newTestEntry(2, "cn=alice,dc=example", nil), entrycache.LockWrite)
	assert.ErrorIs(t, err, entrycache.ErrDuplicate)

	// the id index must not have gained a phantom entry 2 from a
	// partial insert that was rolled back
	_, ok := c.FindByID(ctx, 2, entrycache.LockRead)
	assert.False(t, ok)
}

func TestAddRejectsDuplicateID(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	c := entrycache.NewCacheCore(0)

	addCommitted(t, c, 1, "cn=alice,dc=example", nil)

	_, err := c.Add(ctx, newTestEntry(1, "cn=bob,dc=example", nil), entrycache.LockWrite)
	assert.ErrorIs(t, err, entrycache.ErrDuplicate)

	// the dn index must not have gained a phantom "cn=bob" from the
	// half of the insert that happened before the collision was found
	_, ok := c.FindByDN(ctx, []byte("cn=bob,dc=example"))
	assert.False(t, ok)
}

func TestAbandonedAddIsRemoved(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	c := entrycache.NewCacheCore(0)

	closed := 0
	b, err := c.Add(ctx, newTestEntry(1, "cn=alice,dc=example", &closed), entrycache.LockWrite)
	require.NoError(t, err)
	// Abandon: return without Commit.
	b.Return(ctx)

	// The payload belongs to the caller who abandoned it; the cache
	// must not have called Close on it.
	assert.Equal(t, 0, closed)

	_, ok := c.FindByDN(ctx, []byte("cn=alice,dc=example"))
	assert.False(t, ok)
	_, ok = c.FindByID(ctx, 1, entrycache.LockRead)
	assert.False(t, ok)
}

func TestDeleteFreesOnLastBorrowReturn(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	c := entrycache.NewCacheCore(0)

	closed := 0
	addCommitted(t, c, 1, "cn=alice,dc=example", &closed)

	b, ok := c.FindByID(ctx, 1, entrycache.LockRead)
	require.True(t, ok)

	require.NoError(t, c.Delete(ctx, b))
	assert.Equal(t, 1, closed)

	_, ok = c.FindByID(ctx, 1, entrycache.LockRead)
	assert.False(t, ok)
}

func TestUpdateChangesKeys(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	c := entrycache.NewCacheCore(0)

	b, err := c.Add(ctx, newTestEntry(1, "cn=alice,dc=example", nil), entrycache.LockWrite)
	require.NoError(t, err)
	b.Commit()
	b.Return(ctx)

	b, ok := c.FindByID(ctx, 1, entrycache.LockWrite)
	require.True(t, ok)
	require.NoError(t, c.Update(ctx, b, newTestEntry(2, "cn=alice2,dc=example", nil)))
	b.Commit()
	b.Return(ctx)

	_, ok = c.FindByDN(ctx, []byte("cn=alice,dc=example"))
	assert.False(t, ok)
	id, ok := c.FindByDN(ctx, []byte("cn=alice2,dc=example"))
	require.True(t, ok)
	assert.Equal(t, entrycache.ID(2), id)
}

func TestReleaseAllReportsLeaks(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	c := entrycache.NewCacheCore(0)

	addCommitted(t, c, 1, "cn=alice,dc=example", nil)
	addCommitted(t, c, 2, "cn=bob,dc=example", nil)

	held, ok := c.FindByID(ctx, 1, entrycache.LockRead)
	require.True(t, ok)

	leaked := c.ReleaseAll(ctx)
	assert.Equal(t, 1, leaked)

	// record 2 had no outstanding borrow, so it's gone
	_, ok = c.FindByID(ctx, 2, entrycache.LockRead)
	assert.False(t, ok)

	held.Return(ctx)
}
