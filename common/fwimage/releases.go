//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
package fwimage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"
	goversion "github.com/mcuadros/go-version"
	"golang.org/x/oauth2"
)

const (
	BootloaderAsset     = "bootloader.bin"
	PartitionTableAsset = "partition-table.bin"
	AppAsset            = "program.bin"

	DefaultGitHubAPIURL = "https://api.github.com"
)

var requiredAssets = []string{BootloaderAsset, PartitionTableAsset, AppAsset}

// Release is a GitHub release that carries all the binaries needed to flash.
type Release struct {
	ID   int
	Tag  string
	Name string
	// Asset name -> download URL.
	Assets map[string]string

	client *http.Client
}

type GitHubReleases struct {
	APIURL string
	Token  string
}

type ghRelease struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	TagName string `json:"tag_name"`
	Draft   bool   `json:"draft"`
	Assets  []*struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// List returns the releases of owner/repo that have all required assets,
// sorted by tag version, oldest first.
func (gh *GitHubReleases) List(ctx context.Context, repo string) ([]*Release, error) {
	if strings.Count(repo, "/") != 1 {
		return nil, errors.Errorf("invalid repo %q, must be owner/repo", repo)
	}
	apiURL := gh.APIURL
	if apiURL == "" {
		apiURL = DefaultGitHubAPIURL
	}
	client := gitHubClient(ctx, gh.Token)
	src := &urlSource{
		url:    fmt.Sprintf("%s/repos/%s/releases", strings.TrimSuffix(apiURL, "/"), repo),
		accept: "application/vnd.github.v3+json",
		client: client,
	}
	data, err := src.Fetch(ctx)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to list releases of %s", repo)
	}
	glog.V(4).Infof("%s: releases: %s", repo, string(data))
	var ghrs []*ghRelease
	if err := json.Unmarshal(data, &ghrs); err != nil {
		return nil, errors.Annotatef(err, "failed to parse GitHub release info")
	}
	byTag := map[string]*Release{}
	var tags []string
	for _, ghr := range ghrs {
		if ghr.Draft {
			continue
		}
		if _, seen := byTag[ghr.TagName]; seen {
			glog.V(1).Infof("%s: %s: duplicate tag, ignoring release %d", repo, ghr.TagName, ghr.ID)
			continue
		}
		r := &Release{ID: ghr.ID, Tag: ghr.TagName, Name: ghr.Name, Assets: map[string]string{}, client: client}
		for _, a := range ghr.Assets {
			r.Assets[a.Name] = a.BrowserDownloadURL
		}
		if !r.complete() {
			glog.V(1).Infof("%s: %s: no valid binaries", repo, r.Tag)
			continue
		}
		byTag[r.Tag] = r
		tags = append(tags, r.Tag)
	}
	goversion.Sort(tags)
	res := make([]*Release, 0, len(tags))
	for _, tag := range tags {
		res = append(res, byTag[tag])
	}
	return res, nil
}

// Latest returns the release with the highest version, or the one with the
// given tag if tag is not empty.
func (gh *GitHubReleases) Latest(ctx context.Context, repo, tag string) (*Release, error) {
	rels, err := gh.List(ctx, repo)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if tag != "" {
		for _, r := range rels {
			if r.Tag == tag {
				return r, nil
			}
		}
		return nil, errors.Annotatef(os.ErrNotExist, "%s: no usable release %s", repo, tag)
	}
	if len(rels) == 0 {
		return nil, errors.Annotatef(os.ErrNotExist, "%s: no usable releases", repo)
	}
	return rels[len(rels)-1], nil
}

func (r *Release) complete() bool {
	for _, name := range requiredAssets {
		if r.Assets[name] == "" {
			return false
		}
	}
	return true
}

// Layout returns the standard layout sources for the release binaries.
func (r *Release) Layout() LayoutOpts {
	return LayoutOpts{
		Bootloader:     r.source(BootloaderAsset),
		PartitionTable: r.source(PartitionTableAsset),
		App:            r.source(AppAsset),
	}
}

func (r *Release) source(name string) Source {
	client := r.client
	if client == nil {
		client = http.DefaultClient
	}
	return &urlSource{url: r.Assets[name], accept: "application/octet-stream", client: client}
}

// GitHub wants "token" rather than "Bearer" in the Authorization header.
func gitHubClient(ctx context.Context, token string) *http.Client {
	if token == "" {
		return http.DefaultClient
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "token"})
	return oauth2.NewClient(ctx, ts)
}
