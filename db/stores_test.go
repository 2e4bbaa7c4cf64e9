package db

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/bakape/lunachat/codec"
	"github.com/bakape/lunachat/test"
)

func TestNextKeySequential(t *testing.T) {
	t.Parallel()
	d := OpenTest(t)

	for i := uint64(1); i <= 3; i++ {
		id, err := d.HighestKeys.Next(TablePosts)
		if err != nil {
			t.Fatal(err)
		}
		test.AssertEquals(t, id, i)
	}

	// Counters are per table
	id, err := d.Users.NextKey()
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEquals(t, id, UserID(1))

	last, ok, err := d.HighestKeys.Get(TablePosts)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("counter not stored")
	}
	test.AssertEquals(t, last, uint64(3))
}

func TestNextKeyConcurrent(t *testing.T) {
	t.Parallel()
	d := OpenTest(t)

	const workers, perWorker = 8, 25
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id, err := d.Posts.NextKey()
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				ids = append(ids, int(id))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// No duplicates and no gaps
	sort.Ints(ids)
	test.AssertEquals(t, len(ids), workers*perWorker)
	for i, id := range ids {
		test.AssertEquals(t, id, i+1)
	}
}

func TestVersionsInit(t *testing.T) {
	t.Parallel()
	d := OpenTest(t)

	// Preexisting versions are kept
	if err := d.Versions.Insert(TablePosts, 1); err != nil {
		t.Fatal(err)
	}
	if err := d.Versions.Init(); err != nil {
		t.Fatal(err)
	}

	cases := [...]struct {
		table TableType
		ver   uint64
	}{
		{TablePosts, 1},
		{TableUsers, UsersVersion},
		{TableHighestKeys, HighestKeysVersion},
		{TableThreads, ThreadsVersion},
	}
	for _, c := range cases {
		t.Run(c.table.String(), func(t *testing.T) {
			ver, ok, err := d.Versions.Get(c.table)
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Fatal("version not set")
			}
			test.AssertEquals(t, ver, c.ver)
		})
	}

	outdated, err := d.Versions.Outdated()
	if err != nil {
		t.Fatal(err)
	}
	test.AssertDeepEquals(t, outdated, []TableType{TablePosts})
}

func TestVersionsInitExistingRows(t *testing.T) {
	t.Parallel()
	d := OpenTest(t)

	// Rows written before versions were tracked
	raw := NewTable(d, BucketPosts, codec.Raw, codec.Raw)
	if err := raw.Insert([]byte{1}, []byte{2}); err != nil {
		t.Fatal(err)
	}
	if err := d.Versions.Init(); err != nil {
		t.Fatal(err)
	}

	for _, table := range Tables {
		std := CurrentVersion(table)
		if table == TablePosts {
			std = 1
		}
		ver, ok, err := d.Versions.Get(table)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("no version for %s", table)
		}
		test.AssertEquals(t, ver, std)
	}

	outdated, err := d.Versions.Outdated()
	if err != nil {
		t.Fatal(err)
	}
	test.AssertDeepEquals(t, outdated, []TableType{TablePosts})
}

func TestUsernameIndex(t *testing.T) {
	t.Parallel()
	d := OpenTest(t)

	avatar := "cat.png"
	users := []User{
		{ID: 1, Username: "alice", Password: "hash1"},
		{ID: 2, Username: "bob", Password: "hash2", Avatar: &avatar},
	}
	for _, u := range users {
		if err := d.Users.Insert(u.ID, u); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.Users.Flush(); err != nil {
		t.Fatal(err)
	}

	for _, u := range users {
		t.Run(u.Username, func(t *testing.T) {
			res, ok, err := d.Users.GetByUsername(u.Username)
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Fatal("user not found")
			}
			test.AssertDeepEquals(t, res, u)

			byID, err := d.Users.Load(u.ID)
			if err != nil {
				t.Fatal(err)
			}
			test.AssertDeepEquals(t, byID, res)
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, ok, err := d.Users.GetByUsername("carol")
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Fatal("unexpected user")
		}
	})
}

func TestDanglingUsernameIndex(t *testing.T) {
	t.Parallel()
	d := OpenTest(t)

	// Crash between the index and record writes
	if err := d.Users.usernames.Insert("ghost", 9); err != nil {
		t.Fatal(err)
	}

	_, ok, err := d.Users.GetByUsername("ghost")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("dangling index entry resolved")
	}
}

func TestUserRedaction(t *testing.T) {
	t.Parallel()

	u := User{ID: 1, Username: "alice", Password: "secret-hash"}
	for _, s := range [...]string{
		fmt.Sprint(u),
		fmt.Sprintf("%v", u),
		fmt.Sprintf("%#v", u),
	} {
		if strings.Contains(s, "secret-hash") {
			t.Fatalf("password hash leaked: %s", s)
		}
	}
	test.AssertEquals(t, string(u.SessionAuthHash()), "secret-hash")
}

func TestLatestPost(t *testing.T) {
	t.Parallel()
	d := OpenTest(t)

	for i, thread := range [...]ThreadID{1, 2, 1, 2, 2} {
		insertPost(t, d, Post{ID: PostID(i + 1), Thread: thread})
	}

	cases := [...]struct {
		name   string
		thread ThreadID
		ok     bool
		post   PostID
	}{
		{"first thread", 1, true, 3},
		{"second thread", 2, true, 5},
		{"no posts", 3, false, 0},
	}
	for i := range cases {
		c := cases[i]
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			p, ok, err := d.Posts.Latest(c.thread)
			if err != nil {
				t.Fatal(err)
			}
			test.AssertEquals(t, ok, c.ok)
			test.AssertEquals(t, p.ID, c.post)
		})
	}

	counts, err := d.Posts.CountByThread()
	if err != nil {
		t.Fatal(err)
	}
	test.AssertDeepEquals(t, counts, map[ThreadID]int{1: 2, 2: 3})
}

func TestThreadRoots(t *testing.T) {
	t.Parallel()
	d := OpenTest(t)

	insertThread(t, d, 1, 10)
	insertThread(t, d, 2, 20)
	insertThread(t, d, 3, 20)

	roots, err := d.Threads.Roots()
	if err != nil {
		t.Fatal(err)
	}
	test.AssertDeepEquals(t, roots, map[PostID]ThreadID{10: 1, 20: 2})
}

func TestIDConversion(t *testing.T) {
	t.Parallel()

	for _, id := range [...]PostID{0, 1, 255, 256, 1<<64 - 1} {
		buf := EncodeID(id)
		test.AssertEquals(t, DecodeID[PostID](buf), id)
		test.AssertDeepEquals(t, buf[:], PostIDCodec.Marshal(id))
	}
}
