package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
)

const modulePath = "github.com/yairfalse/cfgwatch/"

type Level int

const (
	LevelCmd Level = iota + 1
	LevelPresentation
	LevelOrchestration
	LevelConfig
	LevelComponent
	LevelFoundation
)

var packageLevels = map[string]Level{
	"cmd":                 LevelCmd,
	"tools":               LevelCmd,
	"internal/output":     LevelPresentation,
	"internal/poller":     LevelOrchestration,
	"pkg/config":          LevelConfig,
	"internal/differ":     LevelComponent,
	"internal/evidence":   LevelComponent,
	"internal/explain":    LevelComponent,
	"internal/metrics":    LevelComponent,
	"internal/mirror":     LevelComponent,
	"internal/normalizer": LevelComponent,
	"internal/push":       LevelComponent,
	"internal/session":    LevelComponent,
	"internal/storage":    LevelComponent,
	"internal/errors":     LevelFoundation,
	"internal/logger":     LevelFoundation,
}

type Violation struct {
	FromFile    string
	FromPackage string
	FromLevel   Level
	ToPackage   string
	ToLevel     Level
}

// getPackageLevel picks the longest registered prefix so nested packages
// inherit their parent's level.
func getPackageLevel(pkgPath string) Level {
	best := ""
	for prefix := range packageLevels {
		if (pkgPath == prefix || strings.HasPrefix(pkgPath, prefix+"/")) && len(prefix) > len(best) {
			best = prefix
		}
	}
	return packageLevels[best]
}

func getPackageFromPath(root, filePath string) string {
	rel, err := filepath.Rel(root, filepath.Dir(filePath))
	if err != nil {
		return filepath.ToSlash(filepath.Dir(filePath))
	}
	return filepath.ToSlash(rel)
}

func checkFile(root, filePath string) ([]Violation, error) {
	var violations []Violation

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, filePath, content, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}

	fromPackage := getPackageFromPath(root, filePath)
	fromLevel := getPackageLevel(fromPackage)
	if fromLevel == 0 {
		return violations, nil
	}

	for _, imp := range node.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		if !strings.HasPrefix(importPath, modulePath) {
			continue
		}
		importPath = strings.TrimPrefix(importPath, modulePath)

		toLevel := getPackageLevel(importPath)
		if toLevel == 0 {
			continue
		}

		// Importing from a higher level
		if toLevel < fromLevel {
			violations = append(violations, Violation{
				FromFile:    filePath,
				FromPackage: fromPackage,
				FromLevel:   fromLevel,
				ToPackage:   importPath,
				ToLevel:     toLevel,
			})
		}
	}

	return violations, nil
}

func walkGoFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if path != root && (name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Check returns every upward import found under root and the number of
// files inspected.
func Check(root string) ([]Violation, int, error) {
	files, err := walkGoFiles(root)
	if err != nil {
		return nil, 0, err
	}

	var all []Violation
	checked := 0
	for _, file := range files {
		violations, err := checkFile(root, file)
		if err != nil {
			return nil, checked, fmt.Errorf("checking %s: %w", file, err)
		}
		all = append(all, violations...)
		checked++
	}
	return all, checked, nil
}

func levelName(l Level) string {
	switch l {
	case LevelCmd:
		return "CMD (Level 1)"
	case LevelPresentation:
		return "PRESENTATION (Level 2)"
	case LevelOrchestration:
		return "ORCHESTRATION (Level 3)"
	case LevelConfig:
		return "CONFIG (Level 4)"
	case LevelComponent:
		return "COMPONENT (Level 5)"
	case LevelFoundation:
		return "FOUNDATION (Level 6)"
	default:
		return "UNKNOWN"
	}
}

func main() {
	root := "."
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	fmt.Println("cfgwatch architecture level checker")
	fmt.Println("===================================")
	fmt.Println()
	fmt.Println("  Level 1 (CMD):           cmd/, tools/")
	fmt.Println("  Level 2 (PRESENTATION):  internal/output")
	fmt.Println("  Level 3 (ORCHESTRATION): internal/poller")
	fmt.Println("  Level 4 (CONFIG):        pkg/config")
	fmt.Println("  Level 5 (COMPONENT):     session, evidence, normalizer, differ, storage, push, mirror, metrics, explain")
	fmt.Println("  Level 6 (FOUNDATION):    internal/errors, internal/logger")
	fmt.Println()

	violations, checked, err := Check(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Checked %d Go files\n\n", checked)

	if len(violations) == 0 {
		color.Green("No architectural level violations found")
		return
	}

	color.Red("Found %d architectural level violations:", len(violations))

	grouped := make(map[string][]Violation)
	for _, v := range violations {
		key := fmt.Sprintf("%s -> %s", levelName(v.FromLevel), levelName(v.ToLevel))
		grouped[key] = append(grouped[key], v)
	}
	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Printf("\n  %s (%d):\n", key, len(grouped[key]))
		for i, v := range grouped[key] {
			if i >= 5 {
				fmt.Printf("   ... and %d more\n", len(grouped[key])-5)
				break
			}
			fmt.Printf("   %s imports %s\n", v.FromPackage, v.ToPackage)
		}
	}

	os.Exit(1)
}
