package student

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/chaos-io/momotalk/util"
	nhttp "github.com/chaos-io/momotalk/util/http"
)

const (
	kivoImageHost   = "https://static.kivo.wiki/images"
	kivoImagePrefix = "/kivo"
)

var nicknameSep = regexp.MustCompile(`[,，]`)

// KivoListItem 学生列表中的一项
type KivoListItem struct {
	ID          int64  `json:"id"`
	GivenNameJP string `json:"given_name_jp"`
}

type KivoSource struct {
	cli      nhttp.IClient
	baseURL  string
	pages    int
	pageSize int
	retry    int
}

func NewKivoSource(cli nhttp.IClient, baseURL string, pages, pageSize, retry int) *KivoSource {
	return &KivoSource{
		cli:      cli,
		baseURL:  strings.TrimRight(baseURL, "/"),
		pages:    pages,
		pageSize: pageSize,
		retry:    retry,
	}
}

// Latest 按实装时间倒序的前几页学生
func (k *KivoSource) Latest(ctx context.Context) ([]KivoListItem, error) {
	var items []KivoListItem
	for page := 1; page <= k.pages; page++ {
		var resp struct {
			Data struct {
				Students []KivoListItem `json:"students"`
			} `json:"data"`
		}
		err := k.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
			RequestURI: k.baseURL + "/",
			Method:     "GET",
			Query: url.Values{
				"page":              {strconv.Itoa(page)},
				"page_size":         {strconv.Itoa(k.pageSize)},
				"is_install":        {"true"},
				"release_date_sort": {"desc"},
			},
			Response: &resp,
			Retry:    k.retry,
		})
		if err != nil {
			return nil, fmt.Errorf("kivo student list page %d: %w", page, err)
		}
		items = append(items, resp.Data.Students...)
	}
	return items, nil
}

// Detail 学生详情，皮肤名以全角括号追加到中文名后
func (k *KivoSource) Detail(ctx context.Context, kivoID int64) (*KivoStudent, error) {
	var data []byte
	err := k.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: fmt.Sprintf("%s/%d", k.baseURL, kivoID),
		Method:     "GET",
		Response:   &data,
		Retry:      k.retry,
	})
	if err != nil {
		return nil, fmt.Errorf("kivo student %d: %w", kivoID, err)
	}

	item := gjson.GetBytes(data, "data")
	if !item.Exists() {
		return nil, fmt.Errorf("kivo student %d: no data", kivoID)
	}

	nameZH := item.Get("given_name").String()
	if skin := item.Get("skin").String(); skin != "" {
		nameZH += "（" + skin + "）"
	}

	return &KivoStudent{
		KivoID:    kivoID,
		Avatar:    decodeURL(item.Get("avatar").String()),
		Momotalk:  item.Get("momo_talk_signature").String(),
		NameEN:    item.Get("given_name_en").String(),
		NameJP:    item.Get("given_name_jp").String(),
		NameZH:    nameZH,
		Nicknames: splitNicknames(item.Get("nick_name").String()),
	}, nil
}

// decodeURL 补全协议相对地址并做百分号解码
func decodeURL(raw string) string {
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	return util.Unquote(raw)
}

func splitNicknames(s string) []string {
	if s == "" || s == "," {
		return []string{}
	}
	return nicknameSep.Split(s, -1)
}

// AvatarStore 保存头像并返回前端路径
type AvatarStore interface {
	Save(ctx context.Context, url string, id int64) (string, error)
}

var ErrNotInKivo = errors.New("student not found in kivo")

// KivoFiller 用 Kivo 数据补全学生的中文名、签名、头像和昵称，并维护 id 映射表
type KivoFiller struct {
	source  *KivoSource
	avatars AvatarStore
	latest  []KivoListItem
	idMap   IDMap
	logger  *zap.Logger
}

func NewKivoFiller(source *KivoSource, avatars AvatarStore, idMap IDMap, logger *zap.Logger) *KivoFiller {
	return &KivoFiller{source: source, avatars: avatars, idMap: idMap, logger: logger}
}

// IDMap 当前的映射表，Fill 会添加新学生
func (f *KivoFiller) IDMap() IDMap {
	return f.idMap
}

// LoadLatest 拉取最新学生列表，Fill 用它匹配不在映射表中的学生
func (f *KivoFiller) LoadLatest(ctx context.Context) error {
	latest, err := f.source.Latest(ctx)
	if err != nil {
		return err
	}
	f.latest = latest
	f.logger.Info("kivo student list loaded", zap.Int("count", len(latest)))
	return nil
}

// Fill 返回补全后的副本，s 不会被修改
func (f *KivoFiller) Fill(ctx context.Context, s Student) (Student, error) {
	filled := s.Clone()
	jpName := filled.Name["jp"]

	item, ok := f.idMap[filled.ID]
	if !ok {
		base, _, _ := strings.Cut(jpName, "（")
		idx := slices.IndexFunc(f.latest, func(k KivoListItem) bool {
			return strings.Contains(k.GivenNameJP, base)
		})
		if idx < 0 {
			return s, fmt.Errorf("%d-%s: %w", filled.ID, jpName, ErrNotInKivo)
		}

		detail, err := f.source.Detail(ctx, f.latest[idx].ID)
		if err != nil {
			return s, err
		}
		item = detail
		f.idMap[filled.ID] = item
	}
	item.NameJP = jpName

	f.fillFields(ctx, &filled, item)
	return filled, nil
}

func (f *KivoFiller) fillFields(ctx context.Context, s *Student, item *KivoStudent) {
	if s.Name == nil {
		s.Name = LocalizedText{}
	}
	if s.Bio == nil {
		s.Bio = LocalizedText{}
	}
	if _, ok := s.Name["zh"]; !ok {
		s.Name["zh"] = item.NameZH
	}
	if _, ok := s.Bio["zh"]; !ok {
		s.Bio["zh"] = item.Momotalk
	}

	avatar, err := f.avatars.Save(ctx, item.Avatar, s.ID)
	if err != nil {
		f.logger.Warn("avatar not saved, using kivo path", zap.Int64("id", s.ID), zap.Error(err))
		avatar = strings.Replace(item.Avatar, kivoImageHost, kivoImagePrefix, 1)
	}
	if !slices.Contains(s.Avatar, avatar) {
		s.Avatar = append([]string{avatar}, s.Avatar...)
	}

	for _, nickname := range append(slices.Clone(item.Nicknames), item.NameEN) {
		if !slices.Contains(s.Nickname, nickname) {
			s.Nickname = append([]string{nickname}, s.Nickname...)
		}
	}
}
