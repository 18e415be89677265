package sticker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chaos-io/momotalk/student"
	"github.com/chaos-io/momotalk/util"
	nhttp "github.com/chaos-io/momotalk/util/http"
)

const entryList = `{"data":{"entry_list":[
	{"id":1,"child":[]},
	{"id":23941,"child":[
		{"id":1,"child":[{"content_id":1,"name":"wrong","name_alias":""}]},
		{"id":49443,"child":[
			{"content_id":100,"name":"アル","name_alias":"陆八魔爱露,社长"},
			{"content_id":101,"name":"ホシノ(水着)","name_alias":""},
			{"content_id":102,"name":"ミカ","name_alias":"Mika,未花"}
		]}
	]}
]}}`

const studentPage = `<html><body>
<div class="swiper-container a"><img src="//cdn/skip1.png"></div>
<div class="swiper-container b"><img src="//cdnimg-v2.gamekee.com/wiki2.0/images/take1.png"></div>
<div class="swiper-container c"><img src="//cdn/skip2.png"></div>
<div class="swiper-container d"><img src="//cdn/take2.png"></div>
</body></html>`

const kivoDetail = `{"code":2000,"data":{"gallery":[
	{"title":"角色图像","images":["//static.kivo.wiki/images/skip.png"]},
	{"title":"表情","images":["//static.kivo.wiki/images/s%201.png","//static.kivo.wiki/images/s2.png","//static.kivo.wiki/images/s%203%zz.png"]}
]}}`

func newStickerServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/wiki/entry":
			if r.Header.Get("game-alias") != "ba" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			_, _ = w.Write([]byte(entryList))
		case "/ba/100.html":
			_, _ = w.Write([]byte(studentPage))
		case "/kivo/200":
			w.WriteHeader(http.StatusBadGateway)
		case "/backup/200", "/backup/201":
			_, _ = w.Write([]byte(kivoDetail))
		case "/backup/202":
			_, _ = w.Write([]byte(`{"code":4004,"codename":"not found"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newGameKee(server *httptest.Server) *GameKee {
	return NewGameKee(nhttp.NewHTTPClient(), server.URL+"/v1/wiki/entry", server.URL+"/ba/", 0, zap.NewNop())
}

func TestNameVariants(t *testing.T) {
	assert.Equal(t, []string{
		"ホシノ（水着）",
		"ホシノ(水着)",
		"ホシノ (水着 )",
		"ホシノ（水着）",
	}, nameVariants("ホシノ（水着）"))
	assert.Equal(t, "ハナコ*", nameVariants("ハナコ＊")[3])
}

func TestGameKee_EntriesAndFillIDs(t *testing.T) {
	server := newStickerServer(t)
	defer server.Close()

	gk := newGameKee(server)
	entries, err := gk.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, Entry{ContentID: 100, Aliases: []string{"アル", "陆八魔爱露", "社长"}}, entries[0])
	assert.Equal(t, []string{"ホシノ(水着)", ""}, entries[1].Aliases)

	idMap := student.IDMap{
		10000: {NameJP: "アル"},
		10025: {NameJP: "シュン（幼女）"},
		10090: {NameJP: "ホシノ（水着）"},
		10200: {NameJP: "ナギサ"},
	}
	unmatched := gk.FillIDs(idMap, entries)
	assert.Equal(t, 1, unmatched)
	assert.Equal(t, int64(100), idMap[10000].GameKeeID)
	assert.Equal(t, int64(60697), idMap[10025].GameKeeID)
	assert.Equal(t, int64(101), idMap[10090].GameKeeID)
	assert.Equal(t, int64(0), idMap[10200].GameKeeID)
}

func TestGameKee_EntriesMissingList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"entry_list":[]}}`))
	}))
	defer server.Close()

	_, err := newGameKee(server).Entries(context.Background())
	assert.ErrorIs(t, err, ErrNoStudentList)
}

func TestGameKee_Stickers(t *testing.T) {
	server := newStickerServer(t)
	defer server.Close()

	got, err := newGameKee(server).Stickers(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdnimg-v2.gamekee.com/wiki2.0/images/take1.png", "https://cdn/take2.png"}, got)

	_, err = newGameKee(server).Stickers(context.Background(), 999)
	assert.Error(t, err)
}

func TestKivoGallery_Stickers(t *testing.T) {
	server := newStickerServer(t)
	defer server.Close()

	k := NewKivoGallery(nhttp.NewHTTPClient(), 0, server.URL+"/kivo/", "", server.URL+"/backup")

	got, err := k.Stickers(context.Background(), 200)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://static.kivo.wiki/images/s 1.png", "https://static.kivo.wiki/images/s2.png", "https://static.kivo.wiki/images/s 3%zz.png"}, got)

	_, err = k.Stickers(context.Background(), 202)
	assert.ErrorContains(t, err, "not found")

	_, err = k.Stickers(context.Background(), 404)
	assert.Error(t, err)

	_, err = NewKivoGallery(nhttp.NewHTTPClient(), 0).Stickers(context.Background(), 200)
	assert.Error(t, err)
}

func TestRewriteHost(t *testing.T) {
	assert.Equal(t, "/kivo/a.png", rewriteHost("https://static.kivo.wiki/images/a.png"))
	assert.Equal(t, "/gamekee/b.png", rewriteHost("https://cdnimg-v2.gamekee.com/wiki2.0/images/b.png"))
	assert.Equal(t, "https://cdn/c.png", rewriteHost("https://cdn/c.png"))
}

func TestRunner_Run(t *testing.T) {
	server := newStickerServer(t)
	defer server.Close()

	root := t.TempDir()
	idMapPath := filepath.Join(root, "scripts", "id_map.json")
	require.NoError(t, student.IDMap{
		10000: {KivoID: 200, NameJP: "アル"},
		10001: {KivoID: 201, NameJP: "ナギサ"},
		10002: {KivoID: 202, NameJP: "ミカ", StickerDownloadFlag: [2]bool{true, true}},
	}.Save(idMapPath))

	kivo := NewKivoGallery(nhttp.NewHTTPClient(), 0, server.URL+"/kivo", server.URL+"/backup")
	runner := NewRunner(newGameKee(server), kivo, root, zap.NewNop())
	require.NoError(t, runner.Run(context.Background()))

	var aru []string
	require.NoError(t, util.ReadJSON(filepath.Join(root, "Stories", "10000", "Stickers.json"), &aru))
	assert.Equal(t, []string{"/gamekee/take1.png", "https://cdn/take2.png", "/kivo/s 1.png", "/kivo/s2.png", "/kivo/s 3%zz.png"}, aru)

	var nagisa []string
	require.NoError(t, util.ReadJSON(filepath.Join(root, "Stories", "10001", "Stickers.json"), &nagisa))
	assert.Equal(t, []string{"/kivo/s 1.png", "/kivo/s2.png", "/kivo/s 3%zz.png"}, nagisa)

	assert.NoFileExists(t, filepath.Join(root, "Stories", "10002", "Stickers.json"))

	saved, err := student.LoadIDMap(idMapPath)
	require.NoError(t, err)
	assert.Equal(t, [2]bool{true, true}, saved[10000].StickerDownloadFlag)
	assert.Equal(t, int64(100), saved[10000].GameKeeID)
	assert.Equal(t, [2]bool{true, false}, saved[10001].StickerDownloadFlag)
	assert.Equal(t, int64(102), saved[10002].GameKeeID)
}

func TestRunner_RunSavesOnError(t *testing.T) {
	server := newStickerServer(t)
	defer server.Close()

	root := t.TempDir()
	idMapPath := filepath.Join(root, "scripts", "id_map.json")
	require.NoError(t, student.IDMap{
		10000: {KivoID: 200, NameJP: "アル"},
		10001: {KivoID: 404, NameJP: "ミカ"},
	}.Save(idMapPath))

	kivo := NewKivoGallery(nhttp.NewHTTPClient(), 0, server.URL+"/kivo", server.URL+"/backup")
	err := NewRunner(newGameKee(server), kivo, root, zap.NewNop()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "student 10001"))

	saved, err := student.LoadIDMap(idMapPath)
	require.NoError(t, err)
	assert.Equal(t, [2]bool{true, true}, saved[10000].StickerDownloadFlag)
	assert.Equal(t, int64(102), saved[10001].GameKeeID)
	assert.Equal(t, [2]bool{false, false}, saved[10001].StickerDownloadFlag)
}
