package sticker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/chaos-io/momotalk/student"
	"github.com/chaos-io/momotalk/util/crawler"
	nhttp "github.com/chaos-io/momotalk/util/http"
)

// studentListPath 学生图鉴(23941) -> 所有学生(49443)
const studentListPath = `data.entry_list.#(id==23941).child.#(id==49443).child`

const swiperSelector = `div[class*='swiper-container']`

// aliasOverrides GameKee 别名对不上的学生：学生 id -> GameKee id
var aliasOverrides = map[int64]int64{
	10025: 60697,  // シュン（幼女）
	10101: 155638, // サオリ（水着）
	10103: 160537, // マリナ（チーパオ）
	10108: 172184, // ユウカ（パジャマ）
	10109: 172185, // ノア（パジャマ）
	26011: 130764, // 佐天涙子
	26014: 645822, // カリン（制服）
	10111: 173926, // ネル（制服）
	20041: 173927, // リオ
	20043: 650981, // イズミ（正月）
}

var ErrNoStudentList = errors.New("gamekee student list not found")

// Entry GameKee 的一个学生条目
type Entry struct {
	ContentID int64
	Aliases   []string
}

type GameKee struct {
	cli     nhttp.IClient
	apiURL  string
	pageURL string
	retry   int
	logger  *zap.Logger
}

func NewGameKee(cli nhttp.IClient, apiURL, pageURL string, retry int, logger *zap.Logger) *GameKee {
	return &GameKee{
		cli:     cli,
		apiURL:  apiURL,
		pageURL: strings.TrimRight(pageURL, "/"),
		retry:   retry,
		logger:  logger,
	}
}

func gameKeeHeader() map[string]string {
	return map[string]string{
		"game-id":    "0",
		"game-alias": "ba",
	}
}

// Entries 学生条目，别名为 name 加上逗号分隔的 name_alias
func (g *GameKee) Entries(ctx context.Context) ([]Entry, error) {
	var data []byte
	err := g.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: g.apiURL,
		Method:     "GET",
		Header:     gameKeeHeader(),
		Response:   &data,
		Retry:      g.retry,
	})
	if err != nil {
		return nil, fmt.Errorf("gamekee entry list: %w", err)
	}

	list := gjson.GetBytes(data, studentListPath)
	if !list.IsArray() {
		return nil, ErrNoStudentList
	}

	var entries []Entry
	list.ForEach(func(_, s gjson.Result) bool {
		entries = append(entries, Entry{
			ContentID: s.Get("content_id").Int(),
			Aliases:   append([]string{s.Get("name").String()}, strings.Split(s.Get("name_alias").String(), ",")...),
		})
		return true
	})
	g.logger.Info("gamekee student list loaded", zap.Int("count", len(entries)))
	return entries, nil
}

// nameVariants GameKee 的括号写法不统一
func nameVariants(name string) []string {
	return []string{
		name,
		strings.NewReplacer("（", "(", "）", ")").Replace(name),
		strings.NewReplacer("（", " (", "）", " )").Replace(name),
		strings.ReplaceAll(name, "＊", "*"),
	}
}

func findEntry(entries []Entry, name string) (int64, bool) {
	variants := nameVariants(name)
	for _, e := range entries {
		for _, v := range variants {
			if slices.Contains(e.Aliases, v) {
				return e.ContentID, true
			}
		}
	}
	return 0, false
}

// FillIDs 为映射表中的学生填上 GameKee id，返回未匹配的数量
func (g *GameKee) FillIDs(idMap student.IDMap, entries []Entry) int {
	unmatched := 0
	for _, id := range idMap.IDs() {
		item := idMap[id]
		if gk, ok := aliasOverrides[id]; ok {
			item.GameKeeID = gk
			continue
		}
		if gk, ok := findEntry(entries, item.NameJP); ok {
			item.GameKeeID = gk
			continue
		}
		unmatched++
		g.logger.Warn("no gamekee entry", zap.Int64("id", id), zap.String("name", item.NameJP))
	}
	g.logger.Info("gamekee ids filled", zap.Int("unmatched", unmatched))
	return unmatched
}

// Stickers 学生页面中每第二个 swiper-container 里的图片
func (g *GameKee) Stickers(ctx context.Context, gamekeeID int64) ([]string, error) {
	var page string
	err := g.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: fmt.Sprintf("%s/%d.html", g.pageURL, gamekeeID),
		Method:     "GET",
		Header:     gameKeeHeader(),
		Response:   &page,
		Retry:      g.retry,
	})
	if err != nil {
		return nil, err
	}

	doc, err := crawler.Parse(page)
	if err != nil {
		return nil, err
	}
	urls := []string{}
	for _, sel := range crawler.EveryNth(doc, swiperSelector, 2) {
		urls = append(urls, crawler.ImageSources(sel)...)
	}
	return urls, nil
}
