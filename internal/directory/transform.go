package directory

import (
	"strings"

	"yesan/internal/csvtable"
)

// Export column names.
const (
	colName         = "학원명"
	colID           = "등록번호"
	colCategory     = "학원종류"
	colField        = "분야구분"
	colAddress      = "학원주소"
	colZip          = "우편번호"
	colRegDate      = "등록일"
	colStatus       = "등록상태"
	colStatusDate   = "개원/휴원/폐원일"
	colMultiUse     = "다중이용업소여부"
	colBoarding     = "기숙학원여부"
	colDisclosure   = "수강료 공개구분"
	colOwnership    = "건물소유"
	colFounderName  = "설립자-성명"
	colFounderBirth = "설립자-생년월일"
	colFounderAddr  = "설립자-주소"
	colPhone        = "전화번호"
	colMobile       = "핸드폰"

	colBuildingArea  = "건물연면적"
	colTotalArea     = "총면적"
	colDedicatedArea = "전용부분면적"
	colFloors        = "총건물층수"
	colBuiltDate     = "준공일(사용승인일)"
	colCapacityTemp  = "일시수용능력인원"
	colCapacityTotal = "정원합계"

	colProcess    = "교습과정"
	colSubject    = "교습과목(반)"
	colTrack      = "교습계열"
	colQuota      = "정원"
	colPeriod     = "교습기간"
	colTotalFee   = "총교습비"
	colFeePerHour = "총교습비(시간당)"

	colInsCompany     = "보험가입기관"
	colInsContractor  = "계약업체명"
	colInsPolicy      = "계약번호"
	colInsTeachers    = "강사수"
	colInsPerAccident = "사고당배상금액"
	colInsMedical     = "인당의료실비금액"
	colInsPerPerson   = "인당배상금액"
	colInsStart       = "보험시작일"
	colInsEnd         = "보험종료일"

	colInspDate       = "지도점검 받은 일자"
	colInspViolation  = "위반내역"
	colInspPunishment = "행정처분내역"
)

// sourceRow is one export row decoded into the shape of an academy plus the
// sub-records the row may carry.
type sourceRow struct {
	academy    Academy
	course     Course
	insurance  Insurance
	inspection Inspection
}

// decodeRow is the only place that knows the export's column names. Missing
// columns decode as "".
func decodeRow(idx map[string]int, row []string) sourceRow {
	get := func(col string) string {
		if i, ok := idx[col]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}
	return sourceRow{
		academy: Academy{
			ID:         get(colID),
			Name:       strings.TrimSpace(get(colName)),
			Category:   get(colCategory),
			Field:      get(colField),
			Address:    get(colAddress),
			Zip:        get(colZip),
			RegDate:    get(colRegDate),
			Status:     get(colStatus),
			StatusDate: get(colStatusDate),
			MultiUse:   get(colMultiUse),
			Boarding:   get(colBoarding),
			Disclosure: get(colDisclosure),
			Ownership:  get(colOwnership),
			Founder: Founder{
				Name:    get(colFounderName),
				Birth:   get(colFounderBirth),
				Address: get(colFounderAddr),
				Phone:   get(colPhone),
				Mobile:  get(colMobile),
			},
			Facilities: Facilities{
				BuildingArea:      get(colBuildingArea),
				TotalArea:         get(colTotalArea),
				DedicatedArea:     get(colDedicatedArea),
				Floors:            get(colFloors),
				BuiltDate:         get(colBuiltDate),
				CapacityTemporary: get(colCapacityTemp),
				CapacityTotal:     get(colCapacityTotal),
			},
		},
		course: Course{
			Process:    get(colProcess),
			Subject:    get(colSubject),
			Track:      get(colTrack),
			Quota:      get(colQuota),
			Period:     get(colPeriod),
			TotalFee:   get(colTotalFee),
			FeePerHour: get(colFeePerHour),
		},
		insurance: Insurance{
			Company:                 get(colInsCompany),
			Contractor:              get(colInsContractor),
			PolicyNumber:            get(colInsPolicy),
			TeachersCount:           get(colInsTeachers),
			CompensationPerAccident: get(colInsPerAccident),
			MedicalPerPerson:        get(colInsMedical),
			CompensationPerPerson:   get(colInsPerPerson),
			StartDate:               get(colInsStart),
			EndDate:                 get(colInsEnd),
		},
		inspection: Inspection{
			Date:       get(colInspDate),
			Violation:  get(colInspViolation),
			Punishment: get(colInspPunishment),
		},
	}
}

// Transform folds export rows into academies. Rows are grouped by trimmed
// name; the first row of a name fixes the top-level fields and every row may
// contribute a course, an insurance policy and an inspection. Rows without a
// name are dropped. Output keeps first-seen order.
func Transform(t csvtable.Table) []Academy {
	idx := t.Index()
	pos := make(map[string]int)
	var out []Academy

	for _, row := range t.Rows {
		src := decodeRow(idx, row)
		name := src.academy.Name
		if name == "" {
			continue
		}
		i, seen := pos[name]
		if !seen {
			i = len(out)
			pos[name] = i
			a := src.academy
			a.Courses, a.Insurances, a.Inspections = []Course{}, []Insurance{}, []Inspection{}
			out = append(out, a)
		}
		a := &out[i]
		a.addCourse(src.course)
		a.addInsurance(src.insurance)
		a.addInspection(src.inspection)
	}
	return out
}

func (a *Academy) addCourse(c Course) {
	if c.Subject == "" {
		return
	}
	for _, have := range a.Courses {
		if have.Subject == c.Subject && have.Process == c.Process {
			return
		}
	}
	a.Courses = append(a.Courses, c)
}

func (a *Academy) addInsurance(ins Insurance) {
	if ins.Company == "" && ins.PolicyNumber == "" {
		return
	}
	for _, have := range a.Insurances {
		if have.PolicyNumber == ins.PolicyNumber {
			return
		}
	}
	a.Insurances = append(a.Insurances, ins)
}

func (a *Academy) addInspection(in Inspection) {
	if in.Date == "" {
		return
	}
	for _, have := range a.Inspections {
		if have.Date == in.Date && have.Violation == in.Violation {
			return
		}
	}
	a.Inspections = append(a.Inspections, in)
}
