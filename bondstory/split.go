package bondstory

// Block 一段羁绊对话，Seq 为该学生下的序号（从 1 开始）
type Block struct {
	CharacterID int64
	Seq         int
	Records     []Record
}

// Split 按 FavorRankUp 切分对话。
// 跳过没有韩文文本的非图片记录；同一学生连续的段落序号递增，换学生后重置为 1。
func Split(records []Record) []Block {
	if len(records) == 0 {
		return nil
	}

	var (
		blocks []Block
		block  []Record
		charID = records[0].CharacterID
		seq    = 1
	)
	for _, r := range records {
		if r.MessageKR == "" && r.MessageType != "Image" {
			continue
		}
		if r.MessageCondition == CondFavorRankUp && len(block) > 0 {
			blocks = append(blocks, Block{CharacterID: charID, Seq: seq, Records: block})
			if charID == r.CharacterID {
				seq++
			} else {
				seq = 1
			}
			charID = r.CharacterID
			block = []Record{r}
			continue
		}
		block = append(block, r)
	}
	if len(block) > 0 {
		blocks = append(blocks, Block{CharacterID: charID, Seq: seq, Records: block})
	}
	return blocks
}
