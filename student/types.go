package student

import (
	"errors"
	"os"
	"slices"

	"github.com/chaos-io/momotalk/util"
)

// LocalizedText locale -> 文本，locale 取 jp/kr/en/tw/zh 等，序列化时按 key 排序
type LocalizedText map[string]string

type Related struct {
	ItemID   int64  `json:"ItemId"`
	ItemType string `json:"ItemType"`
}

// Student students.json 中的一项
type Student struct {
	ID       int64         `json:"Id"`
	Avatar   []string      `json:"Avatar"`
	Name     LocalizedText `json:"Name"`
	Bio      LocalizedText `json:"Bio"`
	Nickname []string      `json:"Nickname"`
	Birthday string        `json:"Birthday"`
	Age      string        `json:"Age"`
	School   string        `json:"School"`
	Club     string        `json:"Club"`
	Star     int           `json:"Star"`
	Released bool          `json:"Released"`
	Related  *Related      `json:"Related"`
}

// Clone 深拷贝
func (s Student) Clone() Student {
	c := s
	c.Avatar = slices.Clone(s.Avatar)
	c.Nickname = slices.Clone(s.Nickname)
	c.Name = cloneText(s.Name)
	c.Bio = cloneText(s.Bio)
	if s.Related != nil {
		r := *s.Related
		c.Related = &r
	}
	return c
}

func cloneText(t LocalizedText) LocalizedText {
	if t == nil {
		return LocalizedText{}
	}
	c := make(LocalizedText, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}

// KivoStudent id_map.json 中的一项
type KivoStudent struct {
	KivoID              int64    `json:"kivo_id"`
	GameKeeID           int64    `json:"gamekee_id,omitempty"`
	Avatar              string   `json:"avatar"`
	Momotalk            string   `json:"momotalk"`
	NameEN              string   `json:"name_en"`
	NameJP              string   `json:"name_jp"`
	NameZH              string   `json:"name_zh"`
	Nicknames           []string `json:"nicknames"`
	StickerDownloadFlag [2]bool  `json:"sticker_download_flag"`
}

// IDMap 学生 id -> Kivo 信息
type IDMap map[int64]*KivoStudent

// IDs 按数值升序
func (m IDMap) IDs() []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// LoadIDMap 文件不存在时返回空表
func LoadIDMap(path string) (IDMap, error) {
	m := IDMap{}
	if err := util.ReadJSON(path, &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return IDMap{}, nil
		}
		return nil, err
	}
	return m, nil
}

func (m IDMap) Save(path string) error {
	return util.WriteJSON(path, m)
}

// LoadStudents 读取 students.json
func LoadStudents(path string) ([]Student, error) {
	var students []Student
	if err := util.ReadJSON(path, &students); err != nil {
		return nil, err
	}
	return students, nil
}

func writeStudents(path string, students []Student) error {
	return util.WriteJSON(path, students)
}

// Avatars 所有学生的头像列表
func Avatars(students []Student) [][]string {
	out := make([][]string, len(students))
	for i, s := range students {
		out[i] = s.Avatar
	}
	return out
}
