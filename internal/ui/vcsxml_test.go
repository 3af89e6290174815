package ui

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleVcsXML = `<?xml version="1.0" encoding="UTF-8"?>
<project version="4">
  <component name="IssueNavigationConfiguration">
    <option name="links">
      <list>
        <IssueNavigationLink>
          <option name="issueRegexp" value="\b[A-Z]+\-\d+\b" />
          <option name="linkRegexp" value="https://youtrack.jetbrains.com/issue/$0" />
        </IssueNavigationLink>
        <IssueNavigationLink>
          <option name="issueRegexp" value="EA\-(\d+)" />
          <option name="linkRegexp" value="https://web.ea.pages.jetbrains.team/#/issue/$1" />
        </IssueNavigationLink>
      </list>
    </option>
  </component>
</project>`

const noLinksVcsXML = `<?xml version="1.0" encoding="UTF-8"?>
<project version="4">
  <component name="VcsDirectoryMappings">
    <mapping directory="" vcs="Git" />
  </component>
</project>`

func writeVcsXML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".idea"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".idea", "vcs.xml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadIssueNavigationConfig_ParsesLinks(t *testing.T) {
	dir := writeVcsXML(t, sampleVcsXML)

	data, ok := LoadIssueNavigationConfig(dir)
	if !ok {
		t.Fatal("expected config to be found")
	}
	if len(data.Links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(data.Links))
	}
	if data.Links[0].IssueRegexp != `\b[A-Z]+\-\d+\b` || data.Links[0].LinkRegexp != "https://youtrack.jetbrains.com/issue/$0" {
		t.Errorf("unexpected first link: %+v", data.Links[0])
	}
	if data.Links[1].IssueRegexp != `EA\-(\d+)` {
		t.Errorf("unexpected second link: %+v", data.Links[1])
	}
}

func TestLoadIssueNavigationConfig_NoComponent(t *testing.T) {
	dir := writeVcsXML(t, noLinksVcsXML)

	if _, ok := LoadIssueNavigationConfig(dir); ok {
		t.Fatal("expected no config when component is absent")
	}
}

func TestLoadIssueNavigationConfig_MissingFile(t *testing.T) {
	dir := t.TempDir()

	if _, ok := LoadIssueNavigationConfig(dir); ok {
		t.Fatal("expected no config when vcs.xml is absent")
	}
}

func TestLoadIssueNavigationConfig_MalformedXML(t *testing.T) {
	dir := writeVcsXML(t, "not valid xml")

	if _, ok := LoadIssueNavigationConfig(dir); ok {
		t.Fatal("expected no config for malformed xml")
	}
}
