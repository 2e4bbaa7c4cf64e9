package forum

import (
	"sync"
	"testing"

	"github.com/bakape/lunachat/common"
	"github.com/bakape/lunachat/db"
	"github.com/bakape/lunachat/parser"
	"github.com/bakape/lunachat/test"
)

func setup(t *testing.T) (*db.DB, *Forum, *db.User) {
	t.Helper()

	d := db.OpenTest(t)
	alice := db.User{
		ID:       1,
		Username: "alice",
		Password: "hash",
	}
	if err := d.Users.Insert(alice.ID, alice); err != nil {
		t.Fatal(err)
	}
	return d, New(d, parser.NewSanitizer()), &alice
}

func createThread(t *testing.T, f *Forum, author *db.User) db.ThreadID {
	t.Helper()
	id, err := f.CreateThread(author, "hi", "<b>hello</b>")
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func reply(t *testing.T, f *Forum, author *db.User, thread db.ThreadID, body string) db.PostID {
	t.Helper()
	id, err := f.Reply(author, thread, body)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func loadPost(t *testing.T, d *db.DB, id db.PostID) db.Post {
	t.Helper()
	p, err := d.Posts.Load(id)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCreateThread(t *testing.T) {
	t.Parallel()
	d, f, alice := setup(t)

	id := createThread(t, f, alice)
	test.AssertEquals(t, id, db.ThreadID(1))

	thread, err := d.Threads.Load(1)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEquals(t, thread, db.Thread{ID: 1, Title: "hi", Post: 1})

	root := loadPost(t, d, 1)
	test.AssertDeepEquals(t, root, db.Post{
		ID:       1,
		Body:     "<b>hello</b>",
		Author:   1,
		Children: []db.PostID{},
		Thread:   1,
	})
}

func TestCreateThreadSanitizes(t *testing.T) {
	t.Parallel()
	d, f, alice := setup(t)

	id, err := f.CreateThread(
		alice,
		"<script>x</script>title",
		`body<img src=x onerror="alert(1)">`,
	)
	if err != nil {
		t.Fatal(err)
	}
	thread, err := d.Threads.Load(id)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEquals(t, thread.Title, "title")

	root := loadPost(t, d, thread.Post)
	test.AssertEquals(t, root.Body, f.sanitizer.Clean(root.Body))
}

func TestReplyChain(t *testing.T) {
	t.Parallel()
	d, f, alice := setup(t)

	thread := createThread(t, f, alice)
	test.AssertEquals(t, reply(t, f, alice, thread, "r1"), db.PostID(2))
	test.AssertEquals(t, reply(t, f, alice, thread, "r2"), db.PostID(3))

	id := func(i db.PostID) *db.PostID {
		return &i
	}
	cases := [...]struct {
		id       db.PostID
		body     string
		parent   *db.PostID
		children []db.PostID
	}{
		{1, "<b>hello</b>", nil, []db.PostID{2}},
		{2, "r1", id(1), []db.PostID{3}},
		{3, "r2", id(2), []db.PostID{}},
	}
	for _, c := range cases {
		test.AssertDeepEquals(t, loadPost(t, d, c.id), db.Post{
			ID:       c.id,
			Body:     c.body,
			Author:   alice.ID,
			Parent:   c.parent,
			Children: c.children,
			Thread:   thread,
		})
	}
}

func TestReplyThreadsAreSeparate(t *testing.T) {
	t.Parallel()
	d, f, alice := setup(t)

	first := createThread(t, f, alice)
	second := createThread(t, f, alice)
	r := reply(t, f, alice, first, "r")

	p := loadPost(t, d, r)
	test.AssertEquals(t, p.Thread, first)
	test.AssertEquals(t, *p.Parent, db.PostID(1))

	// Root of the second thread is untouched
	th, err := d.Threads.Load(second)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEquals(t, len(loadPost(t, d, th.Post).Children), 0)
}

func TestConcurrentReplies(t *testing.T) {
	t.Parallel()
	d, f, alice := setup(t)

	thread := createThread(t, f, alice)
	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.Reply(alice, thread, "r"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	// Still a single chain of n+1 posts
	p := loadPost(t, d, 1)
	count := 1
	for len(p.Children) != 0 {
		test.AssertEquals(t, len(p.Children), 1)
		p = loadPost(t, d, p.Children[0])
		count++
	}
	test.AssertEquals(t, count, n+1)
}

func TestMutationErrors(t *testing.T) {
	t.Parallel()
	_, f, alice := setup(t)

	long := make([]byte, common.MaxLenBody+1)
	for i := range long {
		long[i] = 'a'
	}

	cases := [...]struct {
		name string
		fn   func() error
		err  error
	}{
		{
			"thread without author",
			func() error {
				_, err := f.CreateThread(nil, "t", "b")
				return err
			},
			common.ErrNotLoggedIn,
		},
		{
			"reply without author",
			func() error {
				_, err := f.Reply(nil, 1, "b")
				return err
			},
			common.ErrNotLoggedIn,
		},
		{
			"reply to empty thread",
			func() error {
				_, err := f.Reply(alice, 9, "b")
				return err
			},
			common.ErrThreadHasNoPosts(9),
		},
		{
			"empty body",
			func() error {
				_, err := f.CreateThread(alice, "t", "<script></script>")
				return err
			},
			common.ErrEmptyBody,
		},
		{
			"body too long",
			func() error {
				_, err := f.Reply(alice, 1, string(long))
				return err
			},
			common.ErrBodyTooLong,
		},
	}
	for i := range cases {
		c := cases[i]
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			test.AssertEquals(t, c.fn(), c.err)
		})
	}
}

func TestThreadView(t *testing.T) {
	t.Parallel()
	_, f, alice := setup(t)

	thread := createThread(t, f, alice)
	reply(t, f, alice, thread, "r1")
	reply(t, f, alice, thread, "r2")

	// Author no longer resolves
	ghost := db.User{ID: 2, Username: "ghost"}
	reply(t, f, &ghost, thread, "r3")

	th, posts, err := f.Thread(thread)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEquals(t, th.Title, "hi")

	var ids []db.PostID
	for _, p := range posts {
		ids = append(ids, p.Post.ID)
	}
	test.AssertDeepEquals(t, ids, []db.PostID{1, 2, 3, 4})
	test.AssertEquals(t, posts[0].Author.Username, "alice")
	test.AssertEquals(t, posts[3].Author.Username, common.DeactivatedUsername)

	_, _, err = f.Thread(99)
	test.AssertEquals(t, err, error(common.ErrThreadNotFound(99)))
}

func TestThreadsIndex(t *testing.T) {
	t.Parallel()
	d, f, alice := setup(t)

	first := createThread(t, f, alice)
	reply(t, f, alice, first, "r")
	second := createThread(t, f, alice)

	// Thread row written before its root post
	if err := d.Threads.Insert(9, db.Thread{ID: 9, Post: 99}); err != nil {
		t.Fatal(err)
	}

	threads, err := f.Threads()
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEquals(t, len(threads), 2)
	test.AssertEquals(t, threads[0].Thread.ID, second)
	test.AssertEquals(t, threads[0].NumPosts, 1)
	test.AssertEquals(t, threads[1].Thread.ID, first)
	test.AssertEquals(t, threads[1].NumPosts, 2)
	test.AssertEquals(t, threads[1].Author.Username, "alice")
	test.AssertEquals(t, threads[1].Root.Body, "<b>hello</b>")
}

func TestUserView(t *testing.T) {
	t.Parallel()
	_, f, alice := setup(t)

	createThread(t, f, alice)
	createThread(t, f, alice)

	u, threads, err := f.User(alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEquals(t, u.Username, "alice")
	test.AssertEquals(t, len(threads), 2)
	test.AssertEquals(t, threads[0].ID, db.ThreadID(2))

	_, _, err = f.User(5)
	test.AssertEquals(t, err, error(common.ErrUserNotFound(5)))
}
