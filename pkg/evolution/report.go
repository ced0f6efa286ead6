package evolution

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ganttStatusLabels maps task status to the mermaid gantt task modifier.
var ganttStatusLabels = map[string]string{
	"completed":   "done",
	"in_progress": "active",
	"blocked":     "crit",
}

// WriteReports renders the monthly mind maps, gantt charts and insight
// files plus the overall evolution report under outputDir.
func WriteReports(outputDir string, results []MonthResult, final Snapshot) error {
	for _, sub := range []string{"mindmaps", "gantt_charts", "insights"} {
		if err := os.MkdirAll(filepath.Join(outputDir, sub), 0o755); err != nil {
			return err
		}
	}

	for _, result := range results {
		files := []struct {
			path    string
			content string
		}{
			{filepath.Join(outputDir, "mindmaps", fmt.Sprintf("mindmap_%s.md", result.Month)), renderMindmap(result)},
			{filepath.Join(outputDir, "gantt_charts", fmt.Sprintf("gantt_%s.md", result.Month)), renderGantt(result)},
			{filepath.Join(outputDir, "insights", fmt.Sprintf("insights_%s.md", result.Month)), renderInsights(result)},
		}
		for _, f := range files {
			if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
				return err
			}
		}
	}

	report := renderEvolutionReport(final)
	return os.WriteFile(filepath.Join(outputDir, "evolution_report.md"), []byte(report), 0o644)
}

func renderMindmap(result MonthResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Mind Map - %s\n\n", result.Month)

	if len(result.Mindmap) == 0 {
		b.WriteString("No mind map data available.\n")
		return b.String()
	}

	central, _ := result.Mindmap["central_theme"].(string)
	if central == "" {
		central = result.Month
	}

	b.WriteString("```mermaid\nmindmap\n")
	fmt.Fprintf(&b, "  root((%s))\n", central)
	for _, branch := range mindmapBranches(result.Mindmap) {
		fmt.Fprintf(&b, "    %s\n", branch.name)
		for _, sub := range branch.subBranches {
			fmt.Fprintf(&b, "      %s\n", sub)
		}
	}
	b.WriteString("```\n")
	return b.String()
}

type branch struct {
	name        string
	subBranches []string
}

func mindmapBranches(mindmap map[string]any) []branch {
	raw, ok := mindmap["branches"].([]any)
	if !ok {
		return nil
	}

	var branches []branch
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if name == "" {
			continue
		}
		br := branch{name: name}
		if subs, ok := m["sub_branches"].([]any); ok {
			for _, sub := range subs {
				if s, ok := sub.(string); ok {
					br.subBranches = append(br.subBranches, s)
				}
			}
		}
		branches = append(branches, br)
	}
	return branches
}

func renderGantt(result MonthResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Gantt Chart - %s\n\n", result.Month)

	if len(result.Gantt.Tasks) == 0 {
		b.WriteString("No tasks found for this month.\n")
		return b.String()
	}

	b.WriteString("```mermaid\ngantt\n")
	fmt.Fprintf(&b, "    title Tasks and Projects - %s\n", result.Month)
	b.WriteString("    dateFormat YYYY-MM-DD\n")

	byCategory := make(map[string][]GanttTask)
	var categories []string
	for _, task := range result.Gantt.Tasks {
		category := task.Category
		if category == "" {
			category = "Other"
		}
		if _, ok := byCategory[category]; !ok {
			categories = append(categories, category)
		}
		byCategory[category] = append(byCategory[category], task)
	}

	for _, category := range categories {
		fmt.Fprintf(&b, "    section %s\n", category)
		for _, task := range byCategory[category] {
			line := "    " + task.Name
			if label, ok := ganttStatusLabels[task.Status]; ok {
				line += " :" + label
			}
			start := task.Start
			if start == "" {
				start = result.Month + "-01"
			}
			end := task.End
			if end == "" {
				end = result.Month + "-28"
			}
			fmt.Fprintf(&b, "%s, %s, %s, %s\n", line, taskID(task), start, end)
		}
	}
	b.WriteString("```\n\n")

	b.WriteString("## Task Details\n\n")
	b.WriteString("| Task | Status | People | Dependencies |\n")
	b.WriteString("|------|--------|--------|--------------|\n")
	for _, task := range result.Gantt.Tasks {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			task.Name, task.Status,
			strings.Join(task.People, ", "),
			strings.Join(task.Dependencies, ", "))
	}
	return b.String()
}

func taskID(task GanttTask) string {
	if task.ID != "" {
		return task.ID
	}
	return "task"
}

func renderInsights(result MonthResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Monthly Insights - %s\n\n", result.Month)

	if result.Err != "" {
		fmt.Fprintf(&b, "Processing failed: %s\n", result.Err)
		return b.String()
	}

	if result.Insights != "" {
		b.WriteString("## Key Insights\n\n")
		b.WriteString(result.Insights)
		b.WriteString("\n\n")
	}

	if len(result.PeopleNetwork) > 0 {
		b.WriteString("## People Network This Month\n")
		for _, person := range sortedKeys(result.PeopleNetwork) {
			fmt.Fprintf(&b, "- **%s**: %d interactions\n", person, result.PeopleNetwork[person])
		}
		b.WriteString("\n")
	}

	if len(result.Concepts) > 0 {
		b.WriteString("## Key Concepts\n")
		for _, concept := range sortedKeys(result.Concepts) {
			fmt.Fprintf(&b, "- **%s**: %d mentions\n", concept, result.Concepts[concept])
		}
	}
	return b.String()
}

func renderEvolutionReport(final Snapshot) string {
	var b strings.Builder
	b.WriteString("# Mind Evolution Report\n\n")
	fmt.Fprintf(&b, "*Generated on %s*\n\n", time.Now().Format("January 2, 2006"))

	b.WriteString("## People Network Evolution\n\n")
	byMonth := make(map[string][]string)
	for person, record := range final.PeopleNetwork {
		byMonth[record.FirstSeen] = append(byMonth[record.FirstSeen], person)
	}
	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Strings(months)
	for _, month := range months {
		sort.Strings(byMonth[month])
		fmt.Fprintf(&b, "- **%s**: New connections: %s\n", month, strings.Join(byMonth[month], ", "))
	}

	b.WriteString("\n## Concept Lifecycle\n\n")
	var active, dormant []string
	for concept, record := range final.ConceptEvolution {
		if record.LastSeen == final.Period {
			active = append(active, concept)
		} else {
			dormant = append(dormant, fmt.Sprintf("%s (last seen: %s)", concept, record.LastSeen))
		}
	}
	sort.Strings(active)
	sort.Strings(dormant)
	b.WriteString("### Currently Active Concepts\n")
	for _, concept := range active {
		fmt.Fprintf(&b, "- %s\n", concept)
	}
	b.WriteString("\n### Completed/Dormant Concepts\n")
	for _, entry := range dormant {
		fmt.Fprintf(&b, "- %s\n", entry)
	}

	b.WriteString("\n## Task Status Evolution\n\n")
	statusCounts := map[string]int{}
	for _, task := range final.TaskTracking {
		statusCounts[task.Status]++
	}
	for _, status := range sortedKeys(statusCounts) {
		fmt.Fprintf(&b, "- %s: %d\n", strings.ReplaceAll(status, "_", " "), statusCounts[status])
	}

	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
