package student

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"slices"
	"strings"

	"github.com/chaos-io/momotalk/util"
)

// SkinTable prefixTable.json：皮肤名 -> 前缀列表
type SkinTable map[string][]string

func LoadSkinTable(path string) (SkinTable, error) {
	t := SkinTable{}
	if err := util.ReadJSON(path, &t); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SkinTable{}, nil
		}
		return nil, err
	}
	return t, nil
}

// Marshal 键排序、4 空格缩进，列表写在同一行
func (t SkinTable) Marshal() ([]byte, error) {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		key, err := marshalCompact(k)
		if err != nil {
			return nil, err
		}
		items := make([]string, 0, len(t[k]))
		for _, v := range t[k] {
			item, err := marshalCompact(v)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		lines = append(lines, "    "+key+": ["+strings.Join(items, ", ")+"]")
	}
	return []byte("{\n" + strings.Join(lines, ",\n") + "\n}"), nil
}

func marshalCompact(v any) (string, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// RegisterSkin 表中没有该皮肤时追加空列表并写回，返回是否写入
func RegisterSkin(path, skin string) (bool, error) {
	t, err := LoadSkinTable(path)
	if err != nil {
		return false, err
	}
	if _, ok := t[skin]; ok {
		return false, nil
	}
	t[skin] = []string{}

	data, err := t.Marshal()
	if err != nil {
		return false, err
	}
	return true, util.WriteFile(path, data)
}
