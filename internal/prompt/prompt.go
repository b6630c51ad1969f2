// Package prompt renders the instruction text sent to the generative model and
// the output grammar the model is asked to follow.
//
// Keeping prompt construction here separates it from the service layer; the
// grammar written by FormatSet is the same one the parser's strict strategy reads.
package prompt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rewired-gh/lottoracle/internal/frequency"
	"github.com/rewired-gh/lottoracle/internal/models"
)

// Themes are the four set categories the model is asked to produce, in order.
var Themes = []string{"冷門號碼組合", "熱門號碼組合", "熱門 + 冷門混合號碼組合", "均衡組合"}

const dateLayout = "2006-01-02"

var ordinals = []string{"一", "二", "三", "四"}

// Ordinal returns the marker used for the i-th set (1-based): 一..四, then digits.
func Ordinal(i int) string {
	if i >= 1 && i <= len(ordinals) {
		return ordinals[i-1]
	}
	return strconv.Itoa(i)
}

// FormatSet renders one set in the output grammar, followed by its rationale line
// when the set carries one.
func FormatSet(i int, set models.RecommendedSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "第%s組(%s): %s + 特別號: %d\n", Ordinal(i), set.Label, formatList(set.Numbers), set.Special)
	if set.Reason != "" {
		fmt.Fprintf(&b, "選號理由: %s\n", set.Reason)
	}
	return b.String()
}

// FormatSets renders every set, numbered from 1.
func FormatSets(sets []models.RecommendedSet) string {
	var b strings.Builder
	for i, set := range sets {
		b.WriteString(FormatSet(i+1, set))
	}
	return b.String()
}

func formatList(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Compose builds the full prompt from draws and their frequency analysis.
// The output depends only on its inputs; draws are listed newest period first
// regardless of the order they are passed in.
func Compose(draws []models.DrawRecord, a frequency.Analysis) string {
	sorted := append([]models.DrawRecord(nil), draws...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Period > sorted[j].Period
	})

	var b strings.Builder
	b.WriteString("大樂透半年中獎資料分析:\n\n")
	fmt.Fprintf(&b, "總期數: %d\n", len(sorted))
	if len(sorted) > 0 {
		fmt.Fprintf(&b, "日期範圍: %s 至 %s\n\n",
			sorted[len(sorted)-1].DrawDate.Format(dateLayout),
			sorted[0].DrawDate.Format(dateLayout))
	} else {
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "所有%d期中獎號碼:\n", len(sorted))
	for _, d := range sorted {
		fmt.Fprintf(&b, "第%d期 (%s): 獎號 %s | 特別號 %d\n",
			d.Period, d.DrawDate.Format(dateLayout), formatList(d.Numbers), d.Special)
	}

	b.WriteString("\n完整獎號出現頻率統計 (1-49號碼):\n")
	for _, nc := range a.Main.Ranked() {
		fmt.Fprintf(&b, "號碼 %d: %d 次\n", nc.Number, nc.Count)
	}
	if len(a.NeverAppeared) > 0 {
		fmt.Fprintf(&b, "\n半年內從未出現的獎號: %s\n", formatList(a.NeverAppeared))
	}

	b.WriteString("\n完整特別號出現頻率統計:\n")
	for _, nc := range a.Special.Ranked() {
		fmt.Fprintf(&b, "特別號 %d: %d 次\n", nc.Number, nc.Count)
	}
	if len(a.NeverAppearedSpecial) > 0 {
		fmt.Fprintf(&b, "\n半年內從未出現的特別號: %s\n", formatList(a.NeverAppearedSpecial))
	}

	b.WriteString("\n\n")
	b.WriteString(strategy)
	b.WriteString(outputGrammar())
	return b.String()
}

func outputGrammar() string {
	var b strings.Builder
	fmt.Fprintf(&b, "根據大樂透半年的中獎資料，請試著分析並且參照[選號策略]和［大樂透玩法以及號碼選取技巧］推薦出%d組彩券號碼(包含特別號):\n\n", len(Themes))
	b.WriteString("請務必按照以下格式回答, 不要添加任何額外說明或文字，僅回覆符合格式的內容:\n")
	fmt.Fprintf(&b, "根據以下主題，[%s]產生%d組號碼組合，並說明選號理由:\n", strings.Join(Themes, "、"), len(Themes))
	for i, theme := range Themes {
		fmt.Fprintf(&b, "第%s組(%s): [號碼1, 號碼2, 號碼3, 號碼4, 號碼5, 號碼6] + 特別號: 號碼\n", Ordinal(i+1), theme)
		b.WriteString("選號理由: ...\n")
	}
	return b.String()
}

const strategy = `基於數學原理與數據分析，以下為具體選號策略，旨在增加與短期趨勢的吻合度，同時保持隨機性：

均衡分佈：
- 選擇3:3或2:4的單雙比組合。
- 選擇和值在120–160之間的號碼組合。
- 確保首尾差在30–40之間，避免過於集中或分散的號碼。

包含同尾號與連號：
- 至少包含1–2組同尾號，優先選擇3尾、5尾或7尾（如03, 13或05, 15）。
- 包含1組2連號（如15, 16或36, 37），優先在1–20或30–49區間。

分區選號：
- 將1–49分為三區：1–16（低）、17–33（中）、34–49（高）。
- 選擇2個低區、2個中區、2個高區的號碼，確保分佈均衡。例如：04, 15, 25, 33, 41, 46。

熱門號碼與冷門號碼結合：
- 選擇2–3個熱門號碼與3–4個其他號碼結合，避免全選熱門號碼。
- 可考慮冷門號碼作為補充，因其可能在未來「回歸均值」。

大樂透玩法以及號碼選取技巧:
- 大樂透獎號為6個號碼，範圍是1-49
- 特別號為1個號碼，範圍是1-49，且不能與獎號重複
- 請以清楚的格式回答，並簡單說明選號理由
- 避開連號和順序號: 建議避免選擇 3 個以上的連號，例如 1、2、3 或 4、5、6 等。
- 考慮遺漏號碼: 當號碼遺漏超過 5~10 期時，可以考慮將其納入選號組合。
- 熱門號碼與冷門號碼搭配: 建議在選號時，適當地搭配熱門和冷門號碼。

`
