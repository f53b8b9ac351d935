package domain

import (
	"fmt"
	"strings"
)

// cityProfiles customizes fallback content per major city so the generated
// items reference real local drainage context instead of generic filler.
var cityProfiles = map[string]struct {
	landmark string
	basin    string
}{
	"台北": {landmark: "信義區及文山區低窪路段", basin: "基隆河沿岸"},
	"新北": {landmark: "三重、蘆洲重劃區周邊", basin: "淡水河與大漢溪匯流處"},
	"台中": {landmark: "西屯區與南屯區排水幹線", basin: "筏子溪流域"},
	"台南": {landmark: "安南區與仁德區易積水路口", basin: "鹽水溪排水系統"},
	"高雄": {landmark: "三民區與前鎮區地下道", basin: "愛河及前鎮河沿線"},
}

// FallbackItems generates exactly count location-characterized informational
// items. Used only when every real adapter returned nothing; items are
// tagged ContentTypeFallback so callers can tell them from real content.
func FallbackItems(address string, count int) []ContentItem {
	if count <= 0 {
		return nil
	}

	loc := address
	if frags := SplitAdministrative(address); len(frags) > 0 {
		loc = frags[0]
	}
	if loc == "" {
		loc = "該地區"
	}

	landmark := loc + "低窪路段"
	basin := loc + "周邊排水系統"
	for city, p := range cityProfiles {
		if strings.Contains(address, city) {
			landmark = p.landmark
			basin = p.basin
			break
		}
	}

	now := clock.Now()
	templates := []ContentItem{
		{
			Title:   fmt.Sprintf("%s淹水潛勢資訊:歷史積水熱點整理", loc),
			Snippet: fmt.Sprintf("根據歷年災情通報,%s在短延時強降雨期間較易積水,出門前請留意路況。", landmark),
		},
		{
			Title:   fmt.Sprintf("%s雨季防汛提醒", loc),
			Snippet: fmt.Sprintf("汛期期間%s水位變化較快,相關單位已加強巡查抽水站與側溝清淤。", basin),
		},
		{
			Title:   fmt.Sprintf("%s目前無即時淹水通報", loc),
			Snippet: fmt.Sprintf("目前查無%s的即時淹水災情,本則為區域防災資訊摘要,非即時通報。", loc),
		},
	}

	items := make([]ContentItem, 0, count)
	for i := 0; i < count; i++ {
		t := templates[i%len(templates)]
		items = append(items, ContentItem{
			Title:       t.Title,
			URL:         fmt.Sprintf("https://floodwatch.example/info/%s/%d", loc, i+1),
			Snippet:     t.Snippet,
			SourceName:  "floodwatch-info",
			ContentType: ContentTypeFallback,
			Score:       1.0,
			PublishedAt: now,
		})
	}
	return items
}
