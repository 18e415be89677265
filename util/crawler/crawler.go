package crawler

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	nhttp "github.com/chaos-io/momotalk/util/http"
)

// Parse 解析 HTML 页面
func Parse(page string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// EveryNth 按文档顺序遍历 selector 命中的元素，计数到 n 时选中该元素并重新计数。
// 已选中元素内部嵌套的命中元素不参与计数。
func EveryNth(doc *goquery.Document, selector string, n int) []*goquery.Selection {
	var (
		picked []*goquery.Selection
		nodes  []*html.Node
		count  int
	)
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		for _, node := range nodes {
			if isAncestor(node, s.Get(0)) {
				return
			}
		}
		count++
		if count == n {
			picked = append(picked, s)
			nodes = append(nodes, s.Get(0))
			count = 0
		}
	})
	return picked
}

func isAncestor(ancestor, node *html.Node) bool {
	for p := node.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// ImageSources 返回 sel 下所有带 src 的 img，协议相对地址补全为 https
func ImageSources(sel *goquery.Selection) []string {
	var urls []string
	sel.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		urls = append(urls, Absolute(src))
	})
	return urls
}

// Absolute 补全协议相对地址（//host/path）
func Absolute(src string) string {
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return src
}

// Download 下载文件到 saveDir，文件名取 URL 路径最后一段，返回本地路径
func Download(ctx context.Context, cli nhttp.IClient, fileURL, saveDir string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", err
	}
	filename := path.Base(u.Path)
	if filename == "/" || filename == "." {
		return "", fmt.Errorf("no file name in %s", fileURL)
	}

	var data []byte
	err = cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: fileURL,
		Method:     "GET",
		Response:   &data,
	})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return "", err
	}
	filePath := filepath.Join(saveDir, filename)
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", err
	}
	return filePath, nil
}
