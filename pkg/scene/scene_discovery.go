package scene

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/df07/go-mitsuba-pathtracer/pkg/loaders"
)

const builtinGroup = "Built-in Scenes"

// SceneInfo represents a discovered scene with its metadata
type SceneInfo struct {
	ID          string `json:"id"`          // Unique identifier
	Name        string `json:"name"`        // Scene name
	DisplayName string `json:"displayName"` // UI display name
	Description string `json:"description"` // Optional description
	Group       string `json:"group"`       // Grouping category
	Type        string `json:"type"`        // "builtin" or "mitsuba"
	FilePath    string `json:"filePath"`    // Path to the XML file, or the builtin name
	Variant     string `json:"variant"`     // Variant name (optional)
}

// SceneGroup represents a group of related scenes
type SceneGroup struct {
	Name   string      `json:"name"`
	Scenes []SceneInfo `json:"scenes"`
}

// ScenesResponse represents the complete response for /api/scenes
type ScenesResponse struct {
	Groups []SceneGroup `json:"groups"`
}

// Load reads a scene by path, or the built-in Cornell box for CornellName,
// and builds it
func Load(path string, opts Options) (*Scene, error) {
	if path == CornellName {
		return Build(NewCornellDescription(), opts)
	}
	desc, err := loaders.LoadMitsuba(path, loaders.MitsubaOptions{Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	return Build(desc, opts)
}

// ListMitsubaScenes returns the metadata of every .xml file in dir, sorted by
// display name. A missing directory yields an empty list.
func ListMitsubaScenes(dir string, log *zap.Logger) ([]SceneInfo, error) {
	if log == nil {
		log = zap.NewNop()
	}
	scenes := []SceneInfo{}
	if _, err := os.Stat(dir); err != nil {
		return scenes, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan scenes directory: %w", err)
	}

	for _, filePath := range files {
		info, err := ParseSceneMetadata(filePath)
		if err != nil {
			log.Warn("Failed to parse scene metadata", zap.String("path", filePath), zap.Error(err))
			continue
		}
		scenes = append(scenes, info)
	}

	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].DisplayName < scenes[j].DisplayName
	})
	return scenes, nil
}

// ParseSceneMetadata extracts metadata from the XML comments at the top of a
// scene file, e.g.
//
//	<!-- Scene: Cornell Box -->
//	<!-- Variant: Glossy -->
func ParseSceneMetadata(filePath string) (SceneInfo, error) {
	filename := filepath.Base(filePath)
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))

	info := SceneInfo{
		ID:       "mitsuba:" + nameWithoutExt,
		Name:     titleCase(nameWithoutExt),
		Group:    "Mitsuba Scenes",
		Type:     "mitsuba",
		FilePath: filePath,
	}

	file, err := os.Open(filePath)
	if err != nil {
		// Unreadable files keep the fallback values
		info.DisplayName = info.Name
		return info, nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	inComment := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "<?") {
			continue
		}
		if !inComment && !strings.HasPrefix(line, "<!--") {
			break
		}

		content := strings.TrimPrefix(line, "<!--")
		inComment = !strings.Contains(content, "-->")
		content = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(content), "-->"))

		key, value, ok := strings.Cut(content, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Scene":
			info.Name = value
		case "Variant":
			info.Variant = value
		case "Description":
			info.Description = value
		case "Group":
			info.Group = value
		}
	}

	if info.Variant != "" {
		info.DisplayName = fmt.Sprintf("%s - %s", info.Name, info.Variant)
	} else {
		info.DisplayName = info.Name
	}
	return info, scanner.Err()
}

// BuiltinScenes lists the scenes that need no file
func BuiltinScenes() []SceneInfo {
	return []SceneInfo{
		{
			ID:          "cornell-box",
			Name:        "Cornell Box",
			DisplayName: "Cornell Box",
			Description: "Cornell box with a gold block and a glass block",
			Group:       builtinGroup,
			Type:        "builtin",
			FilePath:    CornellName,
		},
	}
}

// ListAllScenes returns built-in and Mitsuba scenes, grouped by category
func ListAllScenes(dir string, log *zap.Logger) (ScenesResponse, error) {
	var response ScenesResponse

	mitsubaScenes, err := ListMitsubaScenes(dir, log)
	if err != nil {
		return response, fmt.Errorf("failed to list Mitsuba scenes: %w", err)
	}
	allScenes := append(BuiltinScenes(), mitsubaScenes...)

	groupMap := make(map[string][]SceneInfo)
	for _, s := range allScenes {
		groupMap[s.Group] = append(groupMap[s.Group], s)
	}

	// Built-in first, then alphabetical
	var groupNames []string
	for groupName := range groupMap {
		if groupName != builtinGroup {
			groupNames = append(groupNames, groupName)
		}
	}
	sort.Strings(groupNames)

	if builtIn, exists := groupMap[builtinGroup]; exists {
		response.Groups = append(response.Groups, SceneGroup{Name: builtinGroup, Scenes: builtIn})
	}
	for _, groupName := range groupNames {
		response.Groups = append(response.Groups, SceneGroup{Name: groupName, Scenes: groupMap[groupName]})
	}
	return response, nil
}

// titleCase converts a filename-style string to title case
// e.g., "cornell-empty" -> "Cornell Empty"
func titleCase(s string) string {
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")

	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
		}
	}
	return strings.Join(words, " ")
}
