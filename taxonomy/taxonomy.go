package taxonomy

// Department 医疗科室（闭合枚举）
type Department string

const (
	DeptInternalMedicine Department = "内科"
	DeptSurgery          Department = "外科"
	DeptPediatrics       Department = "儿科"
	DeptObGyn            Department = "妇产科"
	DeptNeurology        Department = "神经科"
	DeptPsychiatry       Department = "精神科"
	DeptDermatology      Department = "皮肤科"
	DeptOphthalmology    Department = "眼科"
	DeptENT              Department = "耳鼻喉科"
	DeptOrthopedics      Department = "骨科"
	DeptUrology          Department = "泌尿科"
	DeptCardiology       Department = "心血管科"
	DeptRespiratory      Department = "呼吸科"
	DeptGastroenterology Department = "消化科"
	DeptEndocrinology    Department = "内分泌科"
	DeptNephrology       Department = "肾内科"
	DeptHematology       Department = "血液科"
	DeptOncology         Department = "肿瘤科"
	DeptEmergency        Department = "急诊科"
	DeptICU              Department = "重症医学科"
	DeptRadiology        Department = "影像科"
	DeptPathology        Department = "病理科"
	DeptLaboratory       Department = "检验科"
	DeptPharmacy         Department = "药学科"
	DeptRehabilitation   Department = "康复科"
	DeptTCM              Department = "中医科"
)

// DocumentType 文档类型（闭合枚举）
type DocumentType string

const (
	DocClinicalGuideline   DocumentType = "临床指南"
	DocDiagnosisCriteria   DocumentType = "诊断标准"
	DocTreatmentProtocol   DocumentType = "治疗方案"
	DocDrugManual          DocumentType = "药物说明书"
	DocCaseStudy           DocumentType = "病例研究"
	DocResearchPaper       DocumentType = "研究论文"
	DocMedicalTextbook     DocumentType = "医学教材"
	DocNursingManual       DocumentType = "护理手册"
	DocSurgicalProcedure   DocumentType = "手术操作"
	DocLaboratoryReference DocumentType = "检验参考"
	DocImagingAtlas        DocumentType = "影像图谱"
	DocEmergencyProtocol   DocumentType = "急救流程"
	DocInfectionControl    DocumentType = "感控指南"
	DocQualityStandard     DocumentType = "质量标准"
	DocPatientEducation    DocumentType = "患者教育"
)

// DiseaseCategory 疾病分类（基于 ICD-11）
type DiseaseCategory string

const (
	DiseaseInfectious      DiseaseCategory = "感染性疾病"
	DiseaseNeoplasms       DiseaseCategory = "肿瘤"
	DiseaseBlood           DiseaseCategory = "血液及造血器官疾病"
	DiseaseImmune          DiseaseCategory = "免疫系统疾病"
	DiseaseEndocrine       DiseaseCategory = "内分泌、营养和代谢疾病"
	DiseaseMental          DiseaseCategory = "精神、行为和神经发育障碍"
	DiseaseNervousSystem   DiseaseCategory = "神经系统疾病"
	DiseaseVisualSystem    DiseaseCategory = "视觉系统疾病"
	DiseaseEar             DiseaseCategory = "耳和乳突疾病"
	DiseaseCirculatory     DiseaseCategory = "循环系统疾病"
	DiseaseRespiratory     DiseaseCategory = "呼吸系统疾病"
	DiseaseDigestive       DiseaseCategory = "消化系统疾病"
	DiseaseSkin            DiseaseCategory = "皮肤疾病"
	DiseaseMusculoskeletal DiseaseCategory = "肌肉骨骼系统疾病"
	DiseaseGenitourinary   DiseaseCategory = "泌尿生殖系统疾病"
	DiseasePregnancy       DiseaseCategory = "妊娠、分娩和产褥期"
	DiseasePerinatal       DiseaseCategory = "围产期疾病"
	DiseaseCongenital      DiseaseCategory = "先天性畸形"
	DiseaseInjury          DiseaseCategory = "损伤、中毒和外因"
)

// EvidenceLevel 证据等级（牛津证据分级）
type EvidenceLevel string

const (
	Evidence1A EvidenceLevel = "1A"
	Evidence1B EvidenceLevel = "1B"
	Evidence2A EvidenceLevel = "2A"
	Evidence2B EvidenceLevel = "2B"
	Evidence3A EvidenceLevel = "3A"
	Evidence3B EvidenceLevel = "3B"
	Evidence4  EvidenceLevel = "4"
	Evidence5  EvidenceLevel = "5"
)

var departments = map[Department]struct{}{
	DeptInternalMedicine: {}, DeptSurgery: {}, DeptPediatrics: {}, DeptObGyn: {},
	DeptNeurology: {}, DeptPsychiatry: {}, DeptDermatology: {}, DeptOphthalmology: {},
	DeptENT: {}, DeptOrthopedics: {}, DeptUrology: {}, DeptCardiology: {},
	DeptRespiratory: {}, DeptGastroenterology: {}, DeptEndocrinology: {}, DeptNephrology: {},
	DeptHematology: {}, DeptOncology: {}, DeptEmergency: {}, DeptICU: {},
	DeptRadiology: {}, DeptPathology: {}, DeptLaboratory: {}, DeptPharmacy: {},
	DeptRehabilitation: {}, DeptTCM: {},
}

var documentTypes = map[DocumentType]struct{}{
	DocClinicalGuideline: {}, DocDiagnosisCriteria: {}, DocTreatmentProtocol: {},
	DocDrugManual: {}, DocCaseStudy: {}, DocResearchPaper: {}, DocMedicalTextbook: {},
	DocNursingManual: {}, DocSurgicalProcedure: {}, DocLaboratoryReference: {},
	DocImagingAtlas: {}, DocEmergencyProtocol: {}, DocInfectionControl: {},
	DocQualityStandard: {}, DocPatientEducation: {},
}

var diseaseCategories = map[DiseaseCategory]struct{}{
	DiseaseInfectious: {}, DiseaseNeoplasms: {}, DiseaseBlood: {}, DiseaseImmune: {},
	DiseaseEndocrine: {}, DiseaseMental: {}, DiseaseNervousSystem: {}, DiseaseVisualSystem: {},
	DiseaseEar: {}, DiseaseCirculatory: {}, DiseaseRespiratory: {}, DiseaseDigestive: {},
	DiseaseSkin: {}, DiseaseMusculoskeletal: {}, DiseaseGenitourinary: {}, DiseasePregnancy: {},
	DiseasePerinatal: {}, DiseaseCongenital: {}, DiseaseInjury: {},
}

// Valid 判断是否为已知科室
func (d Department) Valid() bool {
	_, ok := departments[d]
	return ok
}

// Valid 判断是否为已知文档类型
func (t DocumentType) Valid() bool {
	_, ok := documentTypes[t]
	return ok
}

// Valid 判断是否为已知疾病分类
func (c DiseaseCategory) Valid() bool {
	_, ok := diseaseCategories[c]
	return ok
}

// Metadata 医疗文档块元数据。
// Department 与 DocumentType 为必填字段，DiseaseCategory 与 EvidenceLevel 可为空，
// 自由扩展字段统一放入 Extra，不再在各处使用无类型字典。
type Metadata struct {
	Department      Department        `json:"department"`
	DocumentType    DocumentType      `json:"document_type"`
	DiseaseCategory DiseaseCategory   `json:"disease_category,omitempty"`
	EvidenceLevel   EvidenceLevel     `json:"evidence_level,omitempty"`
	Source          string            `json:"source,omitempty"`
	Title           string            `json:"title,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// Validate 校验必填字段
func (m Metadata) Validate() error {
	if !m.Department.Valid() {
		return NewError(ErrInvalidArgument, "unknown department: "+string(m.Department))
	}
	if !m.DocumentType.Valid() {
		return NewError(ErrInvalidArgument, "unknown document type: "+string(m.DocumentType))
	}
	if m.DiseaseCategory != "" && !m.DiseaseCategory.Valid() {
		return NewError(ErrInvalidArgument, "unknown disease category: "+string(m.DiseaseCategory))
	}
	return nil
}
