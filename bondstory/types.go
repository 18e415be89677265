package bondstory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageCondition 取值
const (
	CondFavorRankUp   = "FavorRankUp"
	CondFeedback      = "Feedback"
	CondAnswer        = "Answer"
	CondMomotalkStory = "momotalkStory"
)

// Message.Type 取值
const (
	TypeText  = 0
	TypeStory = 2
	TypeReply = 3
	TypeRead  = 4
)

// Message.Flag 取值
const (
	FlagContinue = 1
	FlagDefault  = 2
)

// groupOffset 系统消息（既读、羁绊剧情入口）的组号相对原消息组的偏移
const groupOffset = 10000

var ErrEmptyBlock = errors.New("bondstory: empty story block")

// Record AcademyMessanger 表中的一行
type Record struct {
	MessageGroupID              int64  `json:"MessageGroupId"`
	ID                          int64  `json:"Id"`
	CharacterID                 int64  `json:"CharacterId"`
	MessageCondition            string `json:"MessageCondition"`
	ConditionValue              int64  `json:"ConditionValue"`
	PreConditionGroupID         int64  `json:"PreConditionGroupId"`
	PreConditionFavorScheduleID int64  `json:"PreConditionFavorScheduleId"`
	FavorScheduleID             int64  `json:"FavorScheduleId"`
	NextGroupID                 int64  `json:"NextGroupId"`
	FeedbackTimeMillisec        int64  `json:"FeedbackTimeMillisec"`
	MessageType                 string `json:"MessageType"`
	ImagePath                   string `json:"ImagePath"`
	MessageKR                   string `json:"MessageKR"`
	MessageJP                   string `json:"MessageJP"`
	MessageTH                   string `json:"MessageTH"`
	MessageTW                   string `json:"MessageTW"`
	MessageEN                   string `json:"MessageEN"`
}

// Table AcademyMessanger{1,2}ExcelTable.json
type Table struct {
	DataList []Record `json:"DataList"`
}

// StudentName 学生在各语言下的名字，CN 使用繁中服名字
type StudentName struct {
	ID int64
	JP string
	KR string
	EN string
	CN string
}

// Header 剧情文件的第一个元素
type Header struct {
	CharacterID int64  `json:"CharacterId"`
	MessageJP   string `json:"MessageJP"`
	MessageKR   string `json:"MessageKR"`
	MessageTW   string `json:"MessageTW"`
	MessageEN   string `json:"MessageEN"`
}

// Message 前端使用的一条消息
type Message struct {
	MessageID   int64  `json:"MessageId"`
	Flag        int    `json:"Flag"`
	Type        int    `json:"Type"`
	NextID      int64  `json:"NextId"`
	MessageType string `json:"MessageType"`
	ImagePath   string `json:"ImagePath"`
	MessageJP   string `json:"MessageJP"`
	MessageKR   string `json:"MessageKR"`
	MessageTW   string `json:"MessageTW"`
	MessageEN   string `json:"MessageEN"`
}

// Story 序列化为 [Header, Message...]
type Story struct {
	Header   Header
	Messages []Message
}

func (s Story) MarshalJSON() ([]byte, error) {
	items := make([]any, 0, len(s.Messages)+1)
	items = append(items, s.Header)
	for _, m := range s.Messages {
		items = append(items, m)
	}

	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (s *Story) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return errors.New("bondstory: story without header")
	}
	if err := json.Unmarshal(raw[0], &s.Header); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	s.Messages = make([]Message, len(raw)-1)
	for i, r := range raw[1:] {
		if err := json.Unmarshal(r, &s.Messages[i]); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}
