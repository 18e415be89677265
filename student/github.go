package student

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	nhttp "github.com/chaos-io/momotalk/util/http"
)

const releaseDateLayout = "2006-01-02 15:04:05"

// fixedReleaseDates 表中日期不可用的学生
var fixedReleaseDates = map[int64]time.Time{
	16005: time.Date(2021, 6, 30, 11, 0, 1, 0, time.UTC),
	20003: time.Date(2021, 2, 14, 11, 0, 1, 0, time.UTC),
	16010: time.Date(2022, 9, 28, 11, 0, 1, 0, time.UTC),
}

var twNameReplacer = strings.NewReplacer("(", "（", ")", "）")

// Region 一个服务器的三张表
type Region struct {
	Character []gjson.Result
	Etc       []gjson.Result
	Profile   []gjson.Result
}

// RawTables 日服与国际服的原始表
type RawTables struct {
	JP     Region
	Global Region
}

// GitHubSource 从数据 dump 仓库读取 Character / LocalizeEtc / LocalizeCharProfile 表
type GitHubSource struct {
	cli    nhttp.IClient
	rawURL string
	retry  int
}

func NewGitHubSource(cli nhttp.IClient, rawURL string, retry int) *GitHubSource {
	return &GitHubSource{cli: cli, rawURL: strings.TrimRight(rawURL, "/"), retry: retry}
}

// Load 日服全部取自 DB 目录，国际服的 Character 与 Profile 取自 Excel 目录
func (g *GitHubSource) Load(ctx context.Context) (*RawTables, error) {
	tables := &RawTables{}
	files := []struct {
		path string
		dst  *[]gjson.Result
	}{
		{"jp/DB/CharacterExcelTable.json", &tables.JP.Character},
		{"global/Excel/CharacterExcelTable.json", &tables.Global.Character},
		{"jp/DB/LocalizeEtcExcelTable.json", &tables.JP.Etc},
		{"global/DB/LocalizeEtcExcelTable.json", &tables.Global.Etc},
		{"jp/DB/LocalizeCharProfileExcelTable.json", &tables.JP.Profile},
		{"global/Excel/LocalizeCharProfileExcelTable.json", &tables.Global.Profile},
	}

	for _, f := range files {
		var data []byte
		url := g.rawURL + "/" + f.path
		err := g.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
			RequestURI: url,
			Method:     "GET",
			Response:   &data,
			Retry:      g.retry,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", f.path, err)
		}
		list := gjson.GetBytes(data, "DataList")
		if !list.IsArray() {
			return nil, fmt.Errorf("%s: DataList is not an array", f.path)
		}
		*f.dst = list.Array()
	}
	return tables, nil
}

// Tables 由原始表整理出的查找表
type Tables struct {
	Ordering []int64
	School   map[int64]string
	Club     map[int64]string
	Star     map[int64]int
	Age      map[int64]string
	Name     map[int64]LocalizedText
	Status   map[int64]LocalizedText
}

// fixedID 特殊形态的 CharacterId（如 100050001）还原为学生 id
func fixedID(charID int64) int64 {
	if charID > 99999 {
		return charID / 10000
	}
	return charID
}

func isStudent(item gjson.Result) bool {
	return item.Get("TacticEntityType").String() == "Student"
}

func BuildTables(raw *RawTables) (*Tables, error) {
	ordering, err := releaseOrder(raw.JP.Character)
	if err != nil {
		return nil, err
	}

	t := &Tables{
		Ordering: ordering,
		School:   make(map[int64]string),
		Club:     make(map[int64]string),
		Star:     make(map[int64]int),
		Age:      make(map[int64]string),
		Name:     make(map[int64]LocalizedText),
		Status:   make(map[int64]LocalizedText),
	}

	for _, item := range raw.JP.Character {
		if !isStudent(item) {
			continue
		}
		id := item.Get("Id").Int()
		t.School[id] = item.Get("School").String()
		t.Club[id] = item.Get("Club").String()
		t.Star[id] = int(item.Get("DefaultStarGrade").Int())
	}

	for _, item := range raw.JP.Profile {
		if age := item.Get("CharacterAgeJp").String(); age != "" {
			t.Age[item.Get("CharacterId").Int()] = age
		}
	}

	// 国际服覆盖日服
	for _, region := range []Region{raw.JP, raw.Global} {
		etc := make(map[int64]gjson.Result, len(region.Etc))
		for _, e := range region.Etc {
			key := e.Get("Key").Int()
			if _, ok := etc[key]; !ok {
				etc[key] = e
			}
		}
		for _, item := range region.Character {
			e, ok := etc[item.Get("LocalizeEtcId").Int()]
			if !ok {
				continue
			}
			t.Name[item.Get("Id").Int()] = prefixedFields(e, "Name", func(key, value string) string {
				if key == "NameTw" {
					return twNameReplacer.Replace(value)
				}
				return value
			})
		}

		for _, item := range region.Profile {
			t.Status[fixedID(item.Get("CharacterId").Int())] = prefixedFields(item, "StatusMessage", nil)
		}
	}
	return t, nil
}

// prefixedFields 收集以 prefix 开头、不以 Th 结尾的字段，key 去掉 prefix 后转小写
func prefixedFields(item gjson.Result, prefix string, conv func(key, value string) string) LocalizedText {
	out := LocalizedText{}
	item.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if !strings.HasPrefix(k, prefix) || strings.HasSuffix(k, "Th") {
			return true
		}
		v := value.String()
		if conv != nil {
			v = conv(k, v)
		}
		out[strings.ToLower(strings.ReplaceAll(k, prefix, ""))] = v
		return true
	})
	return out
}

// releaseOrder 已实装的可用学生按上线时间排序
func releaseOrder(characters []gjson.Result) ([]int64, error) {
	var (
		ids   []int64
		dates = make(map[int64]time.Time)
	)
	for _, item := range characters {
		if !item.Get("IsPlayable").Bool() ||
			item.Get("ProductionStep").String() != "Release" ||
			!isStudent(item) {
			continue
		}
		id := item.Get("Id").Int()
		date, err := time.Parse(releaseDateLayout, item.Get("ReleaseDate").String())
		if err != nil {
			return nil, fmt.Errorf("student %d release date: %w", id, err)
		}
		if _, ok := dates[id]; !ok {
			ids = append(ids, id)
		}
		dates[id] = date
	}
	for id, date := range fixedReleaseDates {
		if _, ok := dates[id]; !ok {
			ids = append(ids, id)
		}
		dates[id] = date
	}

	sort.SliceStable(ids, func(i, j int) bool {
		return dates[ids[i]].Before(dates[ids[j]])
	})
	return ids, nil
}

// Merge 日服每个有全名的 profile 生成一个学生，按上线顺序输出
func Merge(raw *RawTables, t *Tables) ([]Student, error) {
	merged := make(map[int64]Student)
	for _, item := range raw.JP.Profile {
		if item.Get("FullNameJp").String() == "" {
			continue
		}
		id := fixedID(item.Get("CharacterId").Int())

		name, ok := t.Name[id]
		if !ok {
			return nil, fmt.Errorf("student %d: no name entry", id)
		}
		bio, ok := t.Status[id]
		if !ok {
			return nil, fmt.Errorf("student %d: no status message entry", id)
		}
		school, ok := t.School[id]
		if !ok {
			return nil, fmt.Errorf("student %d: not a student character", id)
		}

		merged[id] = Student{
			ID:       id,
			Avatar:   []string{},
			Name:     cloneText(name),
			Bio:      cloneText(bio),
			Nickname: []string{},
			Birthday: item.Get("BirthDay").String(),
			Age:      t.Age[id],
			School:   school,
			Club:     t.Club[id],
			Star:     t.Star[id],
			Released: true,
		}
	}

	out := make([]Student, 0, len(merged))
	for _, id := range t.Ordering {
		if s, ok := merged[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}
