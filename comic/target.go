package comic

import "encoding/json"

// Dynamic 一条带图动态
type Dynamic struct {
	DynamicID     int64           `json:"dynamic_id"`
	Description   string          `json:"description"`
	Pictures      json.RawMessage `json:"pictures"`
	PicturesCount int             `json:"pictures_count"`
}

// Target 一个漫画系列：在 UP 主空间按关键词搜索，再剔除误命中、补上搜不到的动态
type Target struct {
	Name    string
	Keyword string
	MID     int64
	Exclude []int64
	Include []int64
}

var Targets = []Target{
	{
		Name:    "blueArchive",
		Keyword: "純粋な不純物",
		MID:     436037759,
		Exclude: []int64{
			771782039631298564,
			771753035707711507,
			657128385688895507,
			502993601544930371,
			502670564173752802,
			502253063285176379,
			500453398969849746,
			491922077794132770,
		},
		Include: []int64{
			719366263004987413, // 86
			716787723564744726, // 85
			714168983229562884, // 84
			711623721184395264, // 83
			701286460703113239, // 79
			690906375250771989, // 75
			688279650352234500, // 74
			677935526590808103, // 70
			667528279671963656, // 66
			662337751564156977, // 64
			636565692956540967, // 55
			633409759584714759, // 54
			557338174927095808, // 27
		},
	},
	{
		Name:    "fourPanel",
		Keyword: "碧蓝档案漫画连载中",
		MID:     37507923,
		Exclude: []int64{
			766219696196288546,
			755717938514755654,
			755365802750771249,
		},
		Include: []int64{
			812964277775237233, // 88
			789572395511840805, // 79
			779465431184310291, // 75
			722056226799616017, // 54
			719458136674533433, // 53
			716841032688336930, // 52
		},
	},
	{
		Name:    "record",
		Keyword: "作:せるげい(@pattundo)",
		MID:     436037759,
		Exclude: []int64{
			771782039631298564,
			505966668097363742,
			505374941860938266,
		},
		Include: []int64{
			771753035707711507, // 4
		},
	},
	{
		Name:    "record2",
		Keyword: "せるげい",
		MID:     37507923,
		Include: []int64{
			861948456858550274, // 30
			860008020687454273, // 29
		},
	},
}

// FindTarget 按名字查找
func FindTarget(name string) (Target, bool) {
	for _, t := range Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}
