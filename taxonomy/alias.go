package taxonomy

import "strings"

// AliasTable 别名映射表。
// 历史数据与上游意图识别会产出大量非规范分类字符串（如 "精神障碍"、
// "诊疗规范"），统一在 API 边界通过 Resolver 归一到闭合枚举。
// 映射关系属于配置数据，可整表替换，不内嵌到调用点。
type AliasTable struct {
	Departments       map[string]Department      `yaml:"departments" json:"departments"`
	DocumentTypes     map[string]DocumentType    `yaml:"document_types" json:"document_types"`
	DiseaseCategories map[string]DiseaseCategory `yaml:"disease_categories" json:"disease_categories"`
}

// DefaultAliasTable 返回默认别名表
func DefaultAliasTable() AliasTable {
	return AliasTable{
		Departments: map[string]Department{
			"心脏科":  DeptCardiology,
			"心内科":  DeptCardiology,
			"胸外科":  DeptSurgery,
			"神经外科": DeptSurgery,
			"神经内科": DeptNeurology,
			"心理科":  DeptPsychiatry,
			"消化内科": DeptGastroenterology,
			"呼吸内科": DeptRespiratory,
			"肾脏科":  DeptNephrology,
			"放射科":  DeptRadiology,
			"药剂科":  DeptPharmacy,
			"ICU":  DeptICU,
			"急救科":  DeptEmergency,
			"全科":   DeptInternalMedicine,
		},
		DocumentTypes: map[string]DocumentType{
			"诊疗规范": DocClinicalGuideline,
			"专家共识": DocClinicalGuideline,
			"预防指南": DocClinicalGuideline,
			"治疗指南": DocTreatmentProtocol,
			"诊断指南": DocDiagnosisCriteria,
			"用药指南": DocDrugManual,
			"药品说明": DocDrugManual,
			"护理指南": DocNursingManual,
			"康复指导": DocPatientEducation,
			"急救指南": DocEmergencyProtocol,
		},
		DiseaseCategories: map[string]DiseaseCategory{
			"心血管疾病": DiseaseCirculatory,
			"心脑血管疾病": DiseaseCirculatory,
			"精神疾病":  DiseaseMental,
			"精神障碍":  DiseaseMental,
			"心理疾病":  DiseaseMental,
			"神经疾病":  DiseaseNervousSystem,
			"代谢疾病":  DiseaseEndocrine,
			"内分泌疾病": DiseaseEndocrine,
			"血液疾病":  DiseaseBlood,
			"传染病":   DiseaseInfectious,
			"恶性肿瘤":  DiseaseNeoplasms,
			"癌症":    DiseaseNeoplasms,
			"骨科疾病":  DiseaseMusculoskeletal,
			"眼部疾病":  DiseaseVisualSystem,
			"耳部疾病":  DiseaseEar,
			"泌尿系统疾病": DiseaseGenitourinary,
		},
	}
}

// Resolver 分类归一器。先做精确枚举匹配，再查别名表，未命中返回空值。
type Resolver struct {
	table AliasTable
}

// NewResolver 创建归一器
func NewResolver(table AliasTable) *Resolver {
	return &Resolver{table: table}
}

// ResolveDepartment 归一科室字符串。未命中返回空 Department。
func (r *Resolver) ResolveDepartment(s string) Department {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if d := Department(s); d.Valid() {
		return d
	}
	if d, ok := r.table.Departments[s]; ok {
		return d
	}
	return ""
}

// ResolveDocumentType 归一文档类型字符串。未命中返回空 DocumentType。
func (r *Resolver) ResolveDocumentType(s string) DocumentType {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t := DocumentType(s); t.Valid() {
		return t
	}
	if t, ok := r.table.DocumentTypes[s]; ok {
		return t
	}
	return ""
}

// ResolveDiseaseCategory 归一疾病分类字符串。未命中返回空 DiseaseCategory。
func (r *Resolver) ResolveDiseaseCategory(s string) DiseaseCategory {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if c := DiseaseCategory(s); c.Valid() {
		return c
	}
	if c, ok := r.table.DiseaseCategories[s]; ok {
		return c
	}
	return ""
}
