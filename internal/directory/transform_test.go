package directory

import (
	"strings"
	"testing"

	"yesan/internal/csvtable"
)

const exportHeader = "학원명,등록번호,설립자-성명,학원주소,교습과정,교습과목(반),정원,보험가입기관,계약번호,지도점검 받은 일자,위반내역,행정처분내역\n"

func parse(t *testing.T, body string) csvtable.Table {
	t.Helper()
	tbl, err := csvtable.Parse(strings.NewReader(exportHeader + body))
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestTransformGroupsByName(t *testing.T) {
	tbl := parse(t, ""+
		"스카이학원,R-1,김철수,\"하남시, 미사동\",입시,수학,20,A보험,P-1,2025-01-02,없음,\n"+
		" 스카이학원 ,R-IGNORED,다른사람,다른주소,입시,영어,10,A보험,P-1,2025-01-02,없음,\n"+
		"스카이학원,,,,입시,수학,99,B보험,P-2,2025-03-04,위반,경고\n"+
		"김박사어학원,R-2,박영희,서울,외국어,영어,,,,,,\n")

	got := Transform(tbl)
	if len(got) != 2 {
		t.Fatalf("expected 2 academies, got %d", len(got))
	}
	sky := got[0]
	if sky.Name != "스카이학원" || sky.ID != "R-1" || sky.Founder.Name != "김철수" || sky.Address != "하남시, 미사동" {
		t.Fatalf("first row must fix top-level fields: %+v", sky)
	}
	if len(sky.Courses) != 2 || sky.Courses[0].Subject != "수학" || sky.Courses[0].Quota != "20" || sky.Courses[1].Subject != "영어" {
		t.Fatalf("courses = %+v", sky.Courses)
	}
	if len(sky.Insurances) != 2 || sky.Insurances[1].PolicyNumber != "P-2" {
		t.Fatalf("insurances = %+v", sky.Insurances)
	}
	if len(sky.Inspections) != 2 || sky.Inspections[1].Punishment != "경고" {
		t.Fatalf("inspections = %+v", sky.Inspections)
	}

	kim := got[1]
	if len(kim.Insurances) != 0 || len(kim.Inspections) != 0 || len(kim.Courses) != 1 {
		t.Fatalf("empty sub-records must not be appended: %+v", kim)
	}
}

func TestTransformDropsBlankNames(t *testing.T) {
	tbl := parse(t, ""+
		",R-9,김철수,주소,,,,,,,,\n"+
		"   ,R-10,,,,,,,,,,\n")
	if got := Transform(tbl); len(got) != 0 {
		t.Fatalf("expected no academies, got %+v", got)
	}
}

func TestTransformToleratesShortRows(t *testing.T) {
	tbl := parse(t, "짧은학원,R-3\n")
	got := Transform(tbl)
	if len(got) != 1 || got[0].Founder.Name != "" || got[0].Courses == nil {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestTransformMissingColumns(t *testing.T) {
	tbl, _ := csvtable.Parse(strings.NewReader("학원명\n하나학원\n"))
	got := Transform(tbl)
	if len(got) != 1 || got[0].ID != "" || len(got[0].Courses) != 0 {
		t.Fatalf("unexpected %+v", got)
	}
}
