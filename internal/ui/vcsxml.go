// Package ui holds small file-reading helpers that feed display-facing
// data into the event stream.
package ui

import (
	"encoding/xml"
	"os"
	"path/filepath"

	"github.com/branch-deck/branchdeck/internal/sync/events"
)

type vcsXMLProject struct {
	Components []vcsXMLComponent `xml:"component"`
}

type vcsXMLComponent struct {
	Name    string         `xml:"name,attr"`
	Options []vcsXMLOption `xml:"option"`
}

type vcsXMLOption struct {
	Name  string         `xml:"name,attr"`
	Value string         `xml:"value,attr"`
	List  vcsXMLLinkList `xml:"list"`
}

type vcsXMLLinkList struct {
	Links []vcsXMLLink `xml:"IssueNavigationLink"`
}

type vcsXMLLink struct {
	Options []vcsXMLOption `xml:"option"`
}

// LoadIssueNavigationConfig reads "{repoPath}/.idea/vcs.xml" and extracts
// every configured issue-navigation link. Returns ok == false (not an
// error) when the file is absent, unreadable, malformed, or carries no
// IssueNavigationConfiguration component with links.
func LoadIssueNavigationConfig(repoPath string) (events.IssueNavigationConfigData, bool) {
	path := filepath.Join(repoPath, ".idea", "vcs.xml")
	content, err := os.ReadFile(path)
	if err != nil {
		return events.IssueNavigationConfigData{}, false
	}

	var project vcsXMLProject
	if err := xml.Unmarshal(content, &project); err != nil {
		return events.IssueNavigationConfigData{}, false
	}

	var links []events.IssueLink
	for _, component := range project.Components {
		if component.Name != "IssueNavigationConfiguration" {
			continue
		}
		for _, opt := range component.Options {
			if opt.Name != "links" {
				continue
			}
			for _, link := range opt.List.Links {
				issueRegexp, linkRegexp, ok := extractLinkRegexps(link)
				if ok {
					links = append(links, events.IssueLink{IssueRegexp: issueRegexp, LinkRegexp: linkRegexp})
				}
			}
		}
	}

	if len(links) == 0 {
		return events.IssueNavigationConfigData{}, false
	}
	return events.IssueNavigationConfigData{Links: links}, true
}

func extractLinkRegexps(link vcsXMLLink) (issueRegexp, linkRegexp string, ok bool) {
	var haveIssue, haveLink bool
	for _, opt := range link.Options {
		switch opt.Name {
		case "issueRegexp":
			issueRegexp = opt.Value
			haveIssue = true
		case "linkRegexp":
			linkRegexp = opt.Value
			haveLink = true
		}
	}
	return issueRegexp, linkRegexp, haveIssue && haveLink
}
