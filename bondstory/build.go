package bondstory

import (
	"regexp"
	"slices"
	"strings"
)

var scenarioImage = regexp.MustCompile(`UIs/03_Scenario/04_ScenarioImage/(.*)`)

var markdownEscaper = strings.NewReplacer(
	"#", `\#`,
	"*", `\*`,
	"~", `\~`,
)

const zeroWidthSpace = "\u200b"

// node 构建过程中的消息
type node struct {
	Record
	messageID int64
	nextID    int64
	hasNext   bool
	typ       int
	flag      int
}

// Builder 把一段对话转换为前端的消息链
type Builder struct {
	// StickerBaseURL 剧情图片的前缀，图片名后追加 .webp
	StickerBaseURL string
}

func NewBuilder(stickerBaseURL string) *Builder {
	return &Builder{StickerBaseURL: strings.TrimRight(stickerBaseURL, "/")}
}

// Build 生成一段剧情。records 不会被修改。
func (b *Builder) Build(records []Record, student StudentName) (*Story, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBlock
	}

	nodes := make([]*node, len(records))
	for i, r := range records {
		nodes[i] = &node{Record: r}
	}

	nodes = insertSystemMessages(nodes, student)
	assignMessageIDs(nodes)
	linkNext(nodes)
	assignTypes(nodes)
	nodes = regroup(nodes)

	messages := make([]Message, len(nodes))
	for i, n := range nodes {
		messages[i] = Message{
			MessageID:   n.messageID,
			Flag:        n.flag,
			Type:        n.typ,
			NextID:      n.nextID,
			MessageType: n.MessageType,
			ImagePath:   b.imagePath(n.ImagePath),
			MessageJP:   n.MessageJP,
			MessageKR:   n.MessageKR,
			MessageTW:   n.MessageTW,
			MessageEN:   n.MessageEN,
		}
	}
	fixTexts(messages)

	return &Story{
		Header: Header{
			CharacterID: student.ID,
			MessageJP:   student.JP,
			MessageKR:   student.KR,
			MessageTW:   student.CN,
			MessageEN:   student.EN,
		},
		Messages: messages,
	}, nil
}

func (b *Builder) imagePath(p string) string {
	m := scenarioImage.FindStringSubmatch(p)
	if m == nil {
		return p
	}
	return b.StickerBaseURL + "/" + m[1] + ".webp"
}

func readMarker(n *node) *node {
	return &node{Record: Record{
		MessageGroupID:   n.MessageGroupID - groupOffset,
		MessageCondition: CondFavorRankUp,
		NextGroupID:      n.MessageGroupID,
		MessageType:      "Text",
		MessageKR:        "읽혔습니다",
		MessageJP:        "既読",
		MessageTW:        "已讀",
		MessageEN:        "Message read",
	}}
}

func storyLink(n *node, s StudentName) *node {
	return &node{Record: Record{
		MessageGroupID:   n.MessageGroupID - groupOffset,
		ID:               1,
		MessageCondition: CondMomotalkStory,
		NextGroupID:      n.MessageGroupID,
		MessageType:      "Text",
		MessageKR:        s.KR + "의 인연스토리로",
		MessageJP:        s.JP + "の絆イベントへ",
		MessageTW:        "前往" + s.CN + "的羈絆劇情",
		MessageEN:        "Go to " + s.EN + "'s Bond Story",
	}}
}

// setNextGroup 把 group 组内所有消息的 NextGroupID 指向 next
func setNextGroup(nodes []*node, group, next int64) {
	for _, n := range nodes {
		if n.MessageGroupID == group {
			n.NextGroupID = next
		}
	}
}

// insertSystemMessages 在 FavorRankUp 前插入“已读”，在第一条带羁绊前置条件的消息前插入羁绊剧情入口；
// 没有前置条件时入口追加在末尾。
func insertSystemMessages(nodes []*node, student StudentName) []*node {
	if nodes[0].MessageCondition == CondFavorRankUp {
		nodes[0].PreConditionFavorScheduleID = 0
	}

	for i := 0; i < len(nodes); i++ {
		cur, pos := nodes[i], i
		if cur.MessageCondition == CondFavorRankUp {
			nodes = slices.Insert(nodes, pos, readMarker(cur))
			cur.MessageCondition = CondFeedback
			i++
		}
		if cur.PreConditionFavorScheduleID == 0 {
			continue
		}

		prev := pos - 1
		if prev < 0 {
			prev = len(nodes) - 1
		}
		setNextGroup(nodes, nodes[prev].MessageGroupID, cur.MessageGroupID-groupOffset)
		nodes = slices.Insert(nodes, pos, storyLink(cur, student))
		cur.MessageCondition = CondFeedback
		return nodes
	}

	last := nodes[len(nodes)-1]
	setNextGroup(nodes, last.MessageGroupID, last.MessageGroupID-groupOffset)
	return append(nodes, storyLink(last, student))
}

// assignMessageIDs 回答使用组号；其余为 组号 + Id*7%10，冲突时递增
func assignMessageIDs(nodes []*node) {
	taken := make(map[int64]bool, len(nodes))
	for _, n := range nodes {
		if n.MessageCondition == CondAnswer {
			n.messageID = n.MessageGroupID
		} else {
			n.messageID = n.MessageGroupID + n.ID*7%10
			for taken[n.messageID] {
				n.messageID++
			}
		}
		taken[n.messageID] = true
	}
}

// linkNext 同组的下一条（回答除外），否则 NextGroupID 指向的组的第一条。
// 与最后一条消息 id 相同的消息以及找不到后继的消息 NextID 为 -1。
func linkNext(nodes []*node) {
	for i, a := range nodes {
		for _, b := range nodes[i+1:] {
			if a.MessageGroupID == b.MessageGroupID && a.MessageCondition != CondAnswer {
				a.nextID, a.hasNext = b.messageID, true
				break
			}
			if a.NextGroupID == b.MessageGroupID {
				a.nextID, a.hasNext = b.messageID, true
				break
			}
		}
	}

	lastID := nodes[len(nodes)-1].messageID
	for _, n := range nodes {
		if n.messageID == lastID || !n.hasNext {
			n.nextID, n.hasNext = -1, true
		}
	}
}

func assignTypes(nodes []*node) {
	for _, n := range nodes {
		switch n.MessageCondition {
		case CondFavorRankUp:
			n.typ = TypeRead
		case CondAnswer:
			n.typ = TypeReply
		case CondMomotalkStory:
			n.typ = TypeStory
		default:
			n.typ = TypeText
		}
	}
}

// regroup 按组号首次出现的顺序重排消息并设置 Flag：
// 普通消息组的第一条紧跟在普通消息之后时（首组与末组比较）为 FlagContinue。
func regroup(nodes []*node) []*node {
	var (
		order  []int64
		groups = make(map[int64][]*node)
	)
	for _, n := range nodes {
		n.flag = FlagDefault
		if _, ok := groups[n.MessageGroupID]; !ok {
			order = append(order, n.MessageGroupID)
		}
		groups[n.MessageGroupID] = append(groups[n.MessageGroupID], n)
	}

	out := make([]*node, 0, len(nodes))
	for i, id := range order {
		g := groups[id]
		prev := groups[order[(i-1+len(order))%len(order)]]
		if g[0].typ == TypeText && prev[len(prev)-1].typ == TypeText {
			g[0].flag = FlagContinue
		}
		out = append(out, g...)
	}
	return out
}

// fixTexts 转义 markdown 字符，并给同一语言下重复的文本追加零宽空格
func fixTexts(messages []Message) {
	fields := []func(*Message) *string{
		func(m *Message) *string { return &m.MessageJP },
		func(m *Message) *string { return &m.MessageKR },
		func(m *Message) *string { return &m.MessageTW },
		func(m *Message) *string { return &m.MessageEN },
	}
	for _, field := range fields {
		seen := make(map[string]bool, len(messages))
		for i := range messages {
			text := field(&messages[i])
			*text = markdownEscaper.Replace(*text)
			for *text != "" && seen[*text] {
				*text += zeroWidthSpace
			}
			seen[*text] = true
		}
	}
}
