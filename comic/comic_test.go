package comic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chaos-io/momotalk/util"
	nhttp "github.com/chaos-io/momotalk/util/http"
)

var testTarget = Target{
	Name:    "test",
	Keyword: "純粋な不純物",
	MID:     436037759,
	Exclude: []int64{771782039631298564},
	Include: []int64{719366263004987413, 557338174927095808},
}

func card(id int64, typ int, desc string) string {
	inner, _ := json.Marshal(map[string]any{
		"item": map[string]any{
			"description":    desc,
			"pictures":       []map[string]string{{"img_src": "https://i0.hdslb.com/" + desc + ".jpg"}},
			"pictures_count": 1,
		},
	})
	c, _ := json.Marshal(string(inner))
	return fmt.Sprintf(`{"desc":{"type":%d,"dynamic_id":%d},"card":%s}`, typ, id, c)
}

type biliServer struct {
	*httptest.Server
	detailCalls atomic.Int32
	flaky       atomic.Int32
}

func newBiliServer(t *testing.T) *biliServer {
	t.Helper()
	s := &biliServer{}
	pages := map[string]string{
		"1": fmt.Sprintf(`{"code":0,"data":{"total":3,"cards":[%s,%s]}}`,
			card(771782039631298564, 2, "excluded"),
			card(900000000000000001, 2, "c")),
		"2": fmt.Sprintf(`{"code":0,"data":{"total":3,"cards":[%s,%s]}}`,
			card(800000000000000001, 2, "b"),
			card(800000000000000002, 1, "text")),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/x/space/dynamic/search":
			assert.Equal(t, "純粋な不純物", q.Get("keyword"))
			assert.Equal(t, "436037759", q.Get("mid"))
			if q.Get("ps") == "1" {
				_, _ = w.Write([]byte(`{"code":0,"data":{"total":3}}`))
				return
			}
			if q.Get("pn") == "2" && s.flaky.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"code":-412,"message":"request was banned"}`))
				return
			}
			_, _ = w.Write([]byte(pages[q.Get("pn")]))
		case "/x/polymer/web-dynamic/v1/detail":
			s.detailCalls.Add(1)
			assert.Equal(t, "719366263004987413", q.Get("id"))
			_, _ = w.Write([]byte(`{"code":0,"data":{"item":{"modules":{"module_dynamic":{
				"desc":{"text":"#86"},
				"major":{"draw":{"items":[{"src":"https://i0.hdslb.com/86a.jpg"},{"src":"https://i0.hdslb.com/86b.jpg"}]}}
			}}}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func newAPI(url string) *Bilibili {
	return NewBilibili(nhttp.NewHTTPClient(), url, "https://space.bilibili.com/436037759/dynamic", 0, 0, zap.NewNop())
}

func TestFindTarget(t *testing.T) {
	target, ok := FindTarget("fourPanel")
	require.True(t, ok)
	assert.Equal(t, int64(37507923), target.MID)
	assert.Equal(t, "碧蓝档案漫画连载中", target.Keyword)

	_, ok = FindTarget("unknown")
	assert.False(t, ok)
	assert.Len(t, Targets, 4)
}

func TestBilibili_Total(t *testing.T) {
	server := newBiliServer(t)
	total, err := newAPI(server.URL).Total(context.Background(), testTarget)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestBilibili_SearchKeepsPrecision(t *testing.T) {
	server := newBiliServer(t)
	got, err := newAPI(server.URL).Search(context.Background(), testTarget, 1, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(900000000000000001), got[1].DynamicID)
	assert.Equal(t, "c", got[1].Description)
	assert.Equal(t, 1, got[1].PicturesCount)
	assert.JSONEq(t, `[{"img_src":"https://i0.hdslb.com/c.jpg"}]`, string(got[1].Pictures))
}

func TestBilibili_Detail(t *testing.T) {
	server := newBiliServer(t)
	got, err := newAPI(server.URL).Detail(context.Background(), 719366263004987413)
	require.NoError(t, err)
	assert.Equal(t, int64(719366263004987413), got.DynamicID)
	assert.Equal(t, "#86", got.Description)
	assert.Equal(t, 2, got.PicturesCount)
}

func TestBilibili_RetryExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"code":-352,"message":"risk control"}`))
	}))
	defer server.Close()

	_, err := newAPI(server.URL).Total(context.Background(), testTarget)
	assert.ErrorIs(t, err, ErrAPI)
	assert.Equal(t, int32(searchRetry), calls.Load())
}

func TestBilibili_JitterHonorsContext(t *testing.T) {
	api := NewBilibili(nhttp.NewHTTPClient(), "http://127.0.0.1:1", "", 0, time.Hour, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := api.Total(ctx, testTarget)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunner_Download(t *testing.T) {
	server := newBiliServer(t)
	root := t.TempDir()

	cached := []Dynamic{{
		DynamicID:     557338174927095808,
		Description:   "#27",
		Pictures:      json.RawMessage(`[{"src":"27.jpg"}]`),
		PicturesCount: 1,
	}}
	require.NoError(t, util.WriteJSON(filepath.Join(root, Dir, CacheFile), cached))

	runner := NewRunner(newAPI(server.URL), 2, root, zap.NewNop())
	require.NoError(t, runner.Run(context.Background(), []Target{testTarget}))

	var got []Dynamic
	require.NoError(t, util.ReadJSON(filepath.Join(root, Dir, "test.json"), &got))

	var ids []int64
	for _, d := range got {
		ids = append(ids, d.DynamicID)
	}
	assert.Equal(t, []int64{557338174927095808, 719366263004987413, 800000000000000001, 900000000000000001}, ids)
	assert.Equal(t, "#27", got[0].Description)
	assert.Equal(t, int32(1), server.detailCalls.Load())

	data, err := os.ReadFile(filepath.Join(root, Dir, "test.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dynamic_id": 900000000000000001`)
}

func TestRunner_WithoutCache(t *testing.T) {
	runner := NewRunner(nil, 30, t.TempDir(), zap.NewNop())
	require.NoError(t, runner.LoadCache())
	assert.Empty(t, runner.cache)
}
