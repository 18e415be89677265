package bondstory

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	nhttp "github.com/chaos-io/momotalk/util/http"
)

var studentLocales = []string{"jp", "en", "tw", "kr"}

// Source 学生名字来自 SchaleDB，对话表来自 ba-data 镜像
type Source struct {
	cli       nhttp.IClient
	schaleURL string
	baDataURL string
	retry     int
}

func NewSource(cli nhttp.IClient, schaleURL, baDataURL string, retry int) *Source {
	return &Source{
		cli:       cli,
		schaleURL: strings.TrimRight(schaleURL, "/"),
		baDataURL: strings.TrimRight(baDataURL, "/"),
		retry:     retry,
	}
}

// FetchStudents 以日服名单为准，其他语言缺失时回退到日文名
func (s *Source) FetchStudents(ctx context.Context) (map[int64]StudentName, error) {
	names := make(map[string]map[int64]string, len(studentLocales))
	for _, locale := range studentLocales {
		var data []byte
		err := s.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
			RequestURI: fmt.Sprintf("%s/data/%s/students.min.json", s.schaleURL, locale),
			Method:     "GET",
			Response:   &data,
			Retry:      s.retry,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch %s students: %w", locale, err)
		}
		names[locale] = parseStudentNames(data)
	}

	students := make(map[int64]StudentName, len(names["jp"]))
	for id, jp := range names["jp"] {
		pick := func(locale string) string {
			if n, ok := names[locale][id]; ok {
				return n
			}
			return jp
		}
		students[id] = StudentName{ID: id, JP: jp, KR: pick("kr"), EN: pick("en"), CN: pick("tw")}
	}
	return students, nil
}

// parseStudentNames 兼容以 id 为键的对象和带 Id 字段的数组两种格式
func parseStudentNames(data []byte) map[int64]string {
	out := make(map[int64]string)
	root := gjson.ParseBytes(data)
	root.ForEach(func(key, value gjson.Result) bool {
		id := key.Int()
		if root.IsArray() {
			id = value.Get("Id").Int()
		}
		if id != 0 {
			out[id] = value.Get("Name").String()
		}
		return true
	})
	return out
}

// TableURLs 依次为日服、国际服的两张 AcademyMessanger 表
func (s *Source) TableURLs() []string {
	var urls []string
	for _, region := range []string{"jp", "global"} {
		for _, n := range []int{1, 2} {
			urls = append(urls, fmt.Sprintf("%s/%s/Excel/AcademyMessanger%dExcelTable.json", s.baDataURL, region, n))
		}
	}
	return urls
}

func (s *Source) FetchTables(ctx context.Context) ([]Table, error) {
	urls := s.TableURLs()
	tables := make([]Table, len(urls))
	for i, url := range urls {
		err := s.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
			RequestURI: url,
			Method:     "GET",
			Response:   &tables[i],
			Retry:      s.retry,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
	}
	return tables, nil
}
