package normalize

import (
	"sort"
	"strings"
)

// DefaultSkills is the keyword lookup set used when none is configured.
// The spelling here is the spelling written to job_data.skills.
var DefaultSkills = []string{
	"Python", "Java", "JavaScript", "TypeScript", "Golang", "Rust", "C++", "C#",
	"Ruby", "PHP", "Scala", "Kotlin", "Swift",
	"SQL", "PostgreSQL", "MySQL", "MongoDB", "Redis", "Kafka", "Spark", "Hadoop",
	"Airflow", "Snowflake", "AWS", "Azure", "GCP", "Docker", "Kubernetes",
	"Terraform", "Linux", "Git", "React", "Angular", "Vue", "Node.js", "Django",
	"Flask", "Spring", ".NET", "HTML", "CSS", "GraphQL", "REST",
	"Machine Learning", "TensorFlow", "PyTorch", "Pandas", "Tableau", "Power BI", "Excel",
}

type skillMatcher struct {
	name string // spelling written to job_data.skills
	key  string // lowercased search key
}

// compileSkills builds one matcher per distinct keyword (case-insensitive).
func compileSkills(skills []string) []skillMatcher {
	seen := make(map[string]bool, len(skills))
	out := make([]skillMatcher, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, skillMatcher{name: s, key: key})
	}
	return out
}

// extractSkills returns the keywords found as substrings of lower, ordered by
// first occurrence. Ties (two keywords starting at the same offset, e.g.
// "JavaScript" and "Java") go to the longer keyword.
func extractSkills(lower string, matchers []skillMatcher) []string {
	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for _, m := range matchers {
		if pos := strings.Index(lower, m.key); pos >= 0 {
			hits = append(hits, hit{name: m.name, pos: pos})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return len(hits[i].name) > len(hits[j].name)
	})

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}
