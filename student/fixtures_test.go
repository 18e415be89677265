package student

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const (
	characterJP = `{"DataList":[
		{"Id":10000,"IsPlayable":true,"ProductionStep":"Release","TacticEntityType":"Student","ReleaseDate":"2021-02-04 11:00:00","School":"Gehenna","Club":"Kohshinjo68","DefaultStarGrade":3,"LocalizeEtcId":1},
		{"Id":10001,"IsPlayable":true,"ProductionStep":"Release","TacticEntityType":"Student","ReleaseDate":"2021-02-03 11:00:00","School":"Gehenna","Club":"Kohshinjo68","DefaultStarGrade":2,"LocalizeEtcId":2},
		{"Id":10002,"IsPlayable":true,"ProductionStep":"Release","TacticEntityType":"Student","ReleaseDate":"2022-01-01 11:00:00","School":"Gehenna","Club":"Kohshinjo68","DefaultStarGrade":3,"LocalizeEtcId":3},
		{"Id":16005,"IsPlayable":true,"ProductionStep":"Release","TacticEntityType":"Student","ReleaseDate":"2030-01-01 00:00:00","School":"Gehenna","Club":"Fuuki","DefaultStarGrade":3,"LocalizeEtcId":4},
		{"Id":10099,"IsPlayable":true,"ProductionStep":"Release","TacticEntityType":"Student","ReleaseDate":"2023-01-01 11:00:00","School":"Abydos","Club":"Countermeasure","DefaultStarGrade":3,"LocalizeEtcId":6},
		{"Id":10003,"IsPlayable":false,"ProductionStep":"Release","TacticEntityType":"Student","ReleaseDate":"2020-01-01 00:00:00","School":"Trinity","Club":"","DefaultStarGrade":1,"LocalizeEtcId":5},
		{"Id":99999,"IsPlayable":true,"ProductionStep":"Release","TacticEntityType":"Minion","ReleaseDate":"2020-01-01 00:00:00","School":"","Club":"","DefaultStarGrade":0,"LocalizeEtcId":0}
	]}`
	characterGlobal = `{"DataList":[{"Id":10000,"TacticEntityType":"Student","LocalizeEtcId":11}]}`
	etcJP           = `{"DataList":[
		{"Key":1,"NameJp":"アル","NameKr":"아루","NameTh":"th"},
		{"Key":2,"NameJp":"ムツキ","NameKr":"무츠키"},
		{"Key":3,"NameJp":"アル（正月）","NameKr":"아루(새해)"},
		{"Key":4,"NameJp":"ヒナ"},
		{"Key":4,"NameJp":"duplicate"},
		{"Key":6,"NameJp":"ホシノ（臨戦）"}
	]}`
	etcGlobal = `{"DataList":[{"Key":11,"NameJp":"アル","NameKr":"아루","NameTw":"亞瑠(正)","NameEn":"Aru"}]}`
	profileJP = `{"DataList":[
		{"CharacterId":10000,"FullNameJp":"陸八魔アル","BirthDay":"3/12","CharacterAgeJp":"16歳","StatusMessageJp":"jp bio","StatusMessageKr":"kr bio","StatusMessageTh":"th"},
		{"CharacterId":10001,"FullNameJp":"浅黄ムツキ","BirthDay":"1/3","CharacterAgeJp":"","StatusMessageJp":"m"},
		{"CharacterId":100000001,"FullNameJp":"","BirthDay":"","CharacterAgeJp":"","StatusMessageJp":"beta"},
		{"CharacterId":10002,"FullNameJp":"陸八魔アル","BirthDay":"3/12","CharacterAgeJp":"16歳","StatusMessageJp":"new year"},
		{"CharacterId":16005,"FullNameJp":"空崎ヒナ","BirthDay":"2/19","CharacterAgeJp":"17歳","StatusMessageJp":"h"},
		{"CharacterId":10099,"FullNameJp":"小鳥遊ホシノ","BirthDay":"1/2","CharacterAgeJp":"17歳","StatusMessageJp":"shield"}
	]}`
	profileGlobal = `{"DataList":[{"CharacterId":10000,"StatusMessageJp":"jp bio","StatusMessageTw":"tw bio","StatusMessageEn":"en bio"}]}`

	kivoList   = `{"data":{"students":[{"id":501,"given_name_jp":"ヒナ（水着）"},{"id":500,"given_name_jp":"アル（正月）"}]}}`
	kivoDetail = `{"code":2000,"data":{"given_name":"阿露","skin":"正月","avatar":"//static.kivo.wiki/images/students/%E9%98%BF.png","momo_talk_signature":"sig","given_name_en":"Aru","given_name_jp":"アル","nick_name":"社长，老板"}}`
)

// newDataServer 提供 /gh/owner/name/... 数据仓库与 /kivo Kivo 接口
func newDataServer(t *testing.T) *httptest.Server {
	t.Helper()
	files := map[string]string{
		"/gh/owner/name/jp/DB/CharacterExcelTable.json":                  characterJP,
		"/gh/owner/name/global/Excel/CharacterExcelTable.json":           characterGlobal,
		"/gh/owner/name/jp/DB/LocalizeEtcExcelTable.json":                etcJP,
		"/gh/owner/name/global/DB/LocalizeEtcExcelTable.json":            etcGlobal,
		"/gh/owner/name/jp/DB/LocalizeCharProfileExcelTable.json":        profileJP,
		"/gh/owner/name/global/Excel/LocalizeCharProfileExcelTable.json": profileGlobal,
		"/kivo/500":                                                      kivoDetail,
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/kivo/" {
			if r.URL.Query().Get("page") != "1" {
				_, _ = w.Write([]byte(`{"data":{"students":[]}}`))
				return
			}
			_, _ = w.Write([]byte(kivoList))
			return
		}
		body, ok := files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
}

// fakeAvatars 保存 ok 中的 id，其余返回错误
type fakeAvatars struct {
	ok    map[int64]bool
	calls []string
}

func (f *fakeAvatars) Save(_ context.Context, url string, id int64) (string, error) {
	f.calls = append(f.calls, url)
	if !f.ok[id] {
		return "", errors.New("download failed")
	}
	return fmt.Sprintf("/api/Avatars/Kivo/Released/%d.webp", id), nil
}
