package scorer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"resume-ranker-go/internal/types"
)

// 头衔分词时忽略的虚词与级别词
var titleStopWords = map[string]struct{}{
	"senior": {}, "junior": {}, "staff": {}, "lead": {}, "principal": {},
	"the": {}, "a": {}, "an": {}, "of": {}, "and": {}, "or": {}, "for": {},
	"i": {}, "ii": {}, "iii": {}, "iv": {},
}

var (
	yearPattern    = regexp.MustCompile(`(19|20)\d{2}`)
	presentPattern = regexp.MustCompile(`(?i)present|current|now|至今`)
)

// skillInText 在简历文本中扫描技能词。三字符及以下的短技能名
// (如 Go, C#, AWS) 用词边界匹配, 避免 "go" 命中 "mongodb" 这类误报。
func skillInText(skill, canonical string, resume *types.ResumeRecord) bool {
	text := strings.ToLower(resumeTextBlob(resume))
	if text == "" {
		return false
	}
	for _, needle := range []string{strings.ToLower(skill), canonical} {
		needle = strings.TrimSpace(needle)
		if needle == "" {
			continue
		}
		if len(needle) <= 3 {
			re, err := regexp.Compile(`(^|[^a-z0-9])` + regexp.QuoteMeta(needle) + `($|[^a-z0-9])`)
			if err != nil {
				continue
			}
			if re.MatchString(text) {
				return true
			}
		} else if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

// resumeTextBlob 拼出用于关键词扫描的简历全文
func resumeTextBlob(resume *types.ResumeRecord) string {
	if strings.TrimSpace(resume.RawText) != "" {
		return resume.RawText
	}
	var sb strings.Builder
	sb.WriteString(resume.Summary)
	sb.WriteByte('\n')
	sb.WriteString(strings.Join(resume.Skills, " "))
	for _, exp := range resume.Experience {
		fmt.Fprintf(&sb, "\n%s %s\n", exp.Title, exp.Company)
		sb.WriteString(strings.Join(exp.Bullets, "\n"))
	}
	for _, edu := range resume.Education {
		fmt.Fprintf(&sb, "\n%s %s", edu.Degree, edu.School)
	}
	sb.WriteByte('\n')
	sb.WriteString(strings.Join(resume.Certifications, " "))
	return sb.String()
}

// extractTitleWords 头衔分词: 小写、去分隔符、滤掉虚词和单字符
func extractTitleWords(title string) map[string]struct{} {
	cleaned := strings.ToLower(title)
	for _, sep := range []string{",", "/", "|", "&", "-", "(", ")"} {
		cleaned = strings.ReplaceAll(cleaned, sep, " ")
	}
	words := make(map[string]struct{})
	for _, w := range strings.Fields(cleaned) {
		if len(w) < 2 {
			continue
		}
		if _, stop := titleStopWords[w]; stop {
			continue
		}
		words[w] = struct{}{}
	}
	return words
}

// keywordCoverage 经验相关性的词法降级: JD关键词与技能在最近经历
// 文本中的覆盖率
func keywordCoverage(jd *types.JobDescriptionRecord, recent []types.ExperienceEntry) float64 {
	terms := make(map[string]struct{})
	for _, kw := range jd.Keywords {
		if t := strings.ToLower(strings.TrimSpace(kw)); t != "" {
			terms[t] = struct{}{}
		}
	}
	for _, sk := range jd.RequiredSkills {
		if t := strings.ToLower(strings.TrimSpace(sk)); t != "" {
			terms[t] = struct{}{}
		}
	}
	if len(terms) == 0 {
		return 50
	}

	var sb strings.Builder
	for _, exp := range recent {
		sb.WriteString(exp.Title)
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(exp.Bullets, " "))
		sb.WriteByte(' ')
	}
	text := strings.ToLower(sb.String())

	hit := 0
	for term := range terms {
		if strings.Contains(text, term) {
			hit++
		}
	}
	return clampPct(float64(hit) / float64(len(terms)) * 100)
}

// estimateTotalYears 从经历日期区间估算总工作年限。逐段解析四位年份,
// 至今类区间用当前年份封口。所有段都解析不出时返回 ok=false。
func estimateTotalYears(experience []types.ExperienceEntry) (float64, bool) {
	currentYear := time.Now().Year()
	total := 0.0
	parsed := false
	for _, exp := range experience {
		years := yearPattern.FindAllString(exp.Dates, -1)
		switch {
		case len(years) >= 2:
			first := atoiYear(years[0])
			last := atoiYear(years[len(years)-1])
			span := float64(last - first)
			if span < 0.5 {
				span = 0.5
			}
			total += span
			parsed = true
		case len(years) == 1 && presentPattern.MatchString(exp.Dates):
			span := float64(currentYear - atoiYear(years[0]))
			if span < 0.5 {
				span = 0.5
			}
			total += span
			parsed = true
		case len(years) == 1:
			total += 1.0
			parsed = true
		}
	}
	return total, parsed
}

func atoiYear(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// degreeLevel 学历层级: 博士3 / 硕士2 / 本科1 / 无法识别0
func degreeLevel(s string) int {
	t := strings.ToLower(s)
	switch {
	case strings.Contains(t, "phd") || strings.Contains(t, "ph.d") ||
		strings.Contains(t, "doctor") || strings.Contains(t, "博士"):
		return 3
	case strings.Contains(t, "master") || strings.Contains(t, "mba") ||
		strings.Contains(t, "m.s") || strings.Contains(t, "msc") ||
		strings.Contains(t, "硕士") || strings.Contains(t, "研究生"):
		return 2
	case strings.Contains(t, "bachelor") || strings.Contains(t, "b.s") ||
		strings.Contains(t, "b.a") || strings.Contains(t, "bsc") ||
		strings.Contains(t, "undergraduate") || strings.Contains(t, "本科") ||
		strings.Contains(t, "学士"):
		return 1
	default:
		return 0
	}
}
